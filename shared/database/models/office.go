package models

import (
	"time"

	"github.com/google/uuid"
)

type Office struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	Slug        string    `json:"slug" gorm:"size:100;uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Category    string    `json:"category" gorm:"size:100"`
	LogoURL     string    `json:"logo_url"`
	CoverURL    string    `json:"cover_url"`
	Address     string    `json:"address" gorm:"size:255"`
	Phone       string    `json:"phone" gorm:"size:30"`
	Website     string    `json:"website"`
	IsPublished bool      `json:"is_published" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Owner *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

// OfficeDepartment is a node in an office's department/section tree
type OfficeDepartment struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OfficeID    uuid.UUID `json:"office_id" gorm:"type:uuid;not null;index"`
	ParentID    *uint     `json:"parent_id" gorm:"index"`
	Name        string    `json:"name" gorm:"size:200;not null"`
	Description string    `json:"description" gorm:"type:text"`
	SortOrder   int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`

	Office   *Office             `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:CASCADE"`
	Parent   *OfficeDepartment   `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Children []*OfficeDepartment `json:"children,omitempty" gorm:"-"`
}

type OfficeMedia struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	OfficeID   uuid.UUID `json:"office_id" gorm:"type:uuid;not null;index"`
	UploaderID uuid.UUID `json:"uploader_id" gorm:"type:uuid;not null"`
	URL        string    `json:"url" gorm:"not null"`
	ObjectKey  string    `json:"object_key"`
	MediaType  string    `json:"media_type" gorm:"size:20;not null;default:'image'"`
	Caption    string    `json:"caption" gorm:"size:255"`
	CreatedAt  time.Time `json:"created_at"`

	Office *Office `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:CASCADE"`
}

func (OfficeMedia) TableName() string {
	return "office_media"
}

// OfficeMessage is a contact message left on an office storefront
type OfficeMessage struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	OfficeID    uuid.UUID  `json:"office_id" gorm:"type:uuid;not null;index"`
	SenderID    *uuid.UUID `json:"sender_id" gorm:"type:uuid"`
	SenderName  string     `json:"sender_name" gorm:"size:150;not null"`
	SenderEmail string     `json:"sender_email" gorm:"size:255;not null"`
	Body        string     `json:"body" gorm:"type:text;not null"`
	IsRead      bool       `json:"is_read" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at"`

	Office *Office `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:CASCADE"`
}

type OfficeComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OfficeID  uuid.UUID `json:"office_id" gorm:"type:uuid;not null;index"`
	AuthorID  uuid.UUID `json:"author_id" gorm:"type:uuid;not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	Office *Office `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:CASCADE"`
	Author *User   `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}

type OfficeStats struct {
	ServicesCount  int64   `json:"services_count"`
	AverageRating  float64 `json:"average_rating"`
	RatingsCount   int64   `json:"ratings_count"`
	PaidOrders     int64   `json:"paid_orders"`
	RevenueCents   int64   `json:"revenue_cents"`
	MediaCount     int64   `json:"media_count"`
	UnreadMessages int64   `json:"unread_messages"`
}

// CanManage reports whether user may edit or delete the office
func (o *Office) CanManage(user *User) bool {
	if user == nil {
		return false
	}
	return o.OwnerID == user.ID || user.IsAdmin()
}
