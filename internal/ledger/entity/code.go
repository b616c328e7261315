package entity

// Code is a one-time redemption code in the catalog.
type Code struct {
	Code   string `db:"code" json:"code"`
	Title  string `db:"title" json:"title"`
	Points int64  `db:"points" json:"points"`
}
