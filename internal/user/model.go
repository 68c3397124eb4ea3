package user

import "time"

type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"uniqueIndex;size:190" json:"email"`
	Password  string `gorm:"size:255" json:"-"`
	Name      string `gorm:"size:120" json:"name"`
	Avatar    string `gorm:"size:512" json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public is the projection embedded in messages and member lists.
type Public struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

func (u User) Public() Public {
	return Public{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}
