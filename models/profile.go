package models

// Profile carries the contact data used to reach a user.
type Profile struct {
	ID       string `gorm:"column:id;primaryKey" json:"id"`
	Name     string `gorm:"column:name" json:"name"`
	WhatsApp string `gorm:"column:whatsapp" json:"whatsapp"`
}

func (Profile) TableName() string { return "profiles" }
