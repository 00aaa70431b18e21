package receipt

import "time"

// Status is the review state of a receipt. New receipts always start pending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s is one of the known review states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// User bridges a Telegram identity to an internal id
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FullName   string    `json:"full_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Team is a named collection of users
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to the one team they currently belong to.
// A user has at most one membership at a time.
type Membership struct {
	ID      int64 `json:"id"`
	TeamID  int64 `json:"team_id"`
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"is_admin"`
}

// Receipt is the structured record of one parsed payment document.
// Amount and Fee are in kopecks/cents. Pointer fields are nullable:
// the parser may legitimately fail to find them.
type Receipt struct {
	ID              int64     `json:"id"`
	TeamID          int64     `json:"team_id"`
	UploadedBy      int64     `json:"uploaded_by"`
	Date            time.Time `json:"date"`
	Amount          int64     `json:"amount"`
	OperationNumber *string   `json:"operation_number,omitempty"`
	Sender          *string   `json:"sender,omitempty"`
	Receiver        *string   `json:"receiver,omitempty"`
	Organization    *string   `json:"organization,omitempty"`
	Fee             *int64    `json:"fee,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	Status          Status    `json:"status"`
	FilePath        string    `json:"file_path"`
	CreatedAt       time.Time `json:"created_at"`
}
