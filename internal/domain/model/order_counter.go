package model

// 注文番号の日毎の連番。
// count-then-insertのレースを避けるため、1本のUPSERT文で加算する。
type OrderCounter struct {
	Day   string `gorm:"type:varchar(8);primaryKey" json:"day"`
	Value int64  `gorm:"not null" json:"value"`
}
