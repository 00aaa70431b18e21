package receipt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	userBucketName       = "users"
	teamBucketName       = "teams"
	membershipBucketName = "memberships"
	receiptBucketName    = "receipts"
)

// DB defines the interface for database operations. Every mutation is a
// single transaction: it either fully commits or leaves nothing behind.
type DB interface {
	// CreateUser assigns an id and stores a new user
	CreateUser(user *User) error

	// SaveUser overwrites an existing user record
	SaveUser(user *User) error

	// GetUserByTelegramID retrieves a user by Telegram id
	GetUserByTelegramID(telegramID int64) (*User, error)

	// GetUserByUsername retrieves a user by Telegram username
	GetUserByUsername(username string) (*User, error)

	// CreateTeamWithAdmin stores a new team together with its creator's
	// admin membership in one transaction
	CreateTeamWithAdmin(team *Team, membership *Membership) error

	// GetTeam retrieves a team by id
	GetTeam(id int64) (*Team, error)

	// MembershipForUser returns the user's membership, or ErrNoTeam
	MembershipForUser(userID int64) (*Membership, error)

	// CreateMembership stores a membership, re-checking the one-team
	// invariant inside the transaction
	CreateMembership(membership *Membership) error

	// CreateReceipt assigns an id and stores a new receipt
	CreateReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by id
	GetReceipt(id int64) (*Receipt, error)

	// ListTeamReceipts returns a team's receipts with dates in [from, to],
	// ordered by date ascending
	ListTeamReceipts(teamID int64, from, to time.Time) ([]*Receipt, error)

	// UpdateReceiptStatus changes a receipt's status
	UpdateReceiptStatus(id int64, status Status) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{userBucketName, teamBucketName, membershipBucketName, receiptBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// itob converts an id into a big-endian key so bucket order follows id order.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func putJSON(bucket *bbolt.Bucket, id int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return bucket.Put(itob(id), data)
}

// CreateUser assigns an id and stores a new user
func (b *BoltDB) CreateUser(user *User) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(userBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating user id: %w", err)
		}
		user.ID = int64(seq)
		return putJSON(bucket, user.ID, user)
	})
}

// SaveUser overwrites an existing user record
func (b *BoltDB) SaveUser(user *User) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(userBucketName)), user.ID, user)
	})
}

// GetUserByTelegramID retrieves a user by Telegram id
func (b *BoltDB) GetUserByTelegramID(telegramID int64) (*User, error) {
	var found *User
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(userBucketName)).ForEach(func(k, v []byte) error {
			var user User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("unmarshaling user: %w", err)
			}
			if user.TelegramID == telegramID {
				found = &user
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

// GetUserByUsername retrieves a user by Telegram username. Telegram
// usernames are case-insensitive.
func (b *BoltDB) GetUserByUsername(username string) (*User, error) {
	var found *User
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(userBucketName)).ForEach(func(k, v []byte) error {
			var user User
			if err := json.Unmarshal(v, &user); err != nil {
				return fmt.Errorf("unmarshaling user: %w", err)
			}
			if user.Username != "" && strings.EqualFold(user.Username, username) {
				found = &user
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

// CreateTeamWithAdmin stores a new team together with its creator's admin
// membership. The name-uniqueness check and both writes happen in a single
// transaction, so a team is never visible without its admin.
func (b *BoltDB) CreateTeamWithAdmin(team *Team, membership *Membership) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		teams := tx.Bucket([]byte(teamBucketName))

		var conflict bool
		err := teams.ForEach(func(k, v []byte) error {
			var t Team
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshaling team: %w", err)
			}
			if strings.EqualFold(t.Name, team.Name) {
				conflict = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if conflict {
			return ErrTeamNameTaken
		}

		seq, err := teams.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating team id: %w", err)
		}
		team.ID = int64(seq)
		if err := putJSON(teams, team.ID, team); err != nil {
			return err
		}

		memberships := tx.Bucket([]byte(membershipBucketName))
		if err := rejectExistingMembership(memberships, membership.UserID); err != nil {
			return err
		}
		seq, err = memberships.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating membership id: %w", err)
		}
		membership.ID = int64(seq)
		membership.TeamID = team.ID
		return putJSON(memberships, membership.ID, membership)
	})
}

// GetTeam retrieves a team by id
func (b *BoltDB) GetTeam(id int64) (*Team, error) {
	var team *Team
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(teamBucketName)).Get(itob(id))
		if data == nil {
			return fmt.Errorf("team not found: %d", id)
		}
		return json.Unmarshal(data, &team)
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// rejectExistingMembership returns ErrAlreadyInTeam if the user already has
// a membership record. Must be called inside the writing transaction.
func rejectExistingMembership(bucket *bbolt.Bucket, userID int64) error {
	var exists bool
	err := bucket.ForEach(func(k, v []byte) error {
		var m Membership
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("unmarshaling membership: %w", err)
		}
		if m.UserID == userID {
			exists = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyInTeam
	}
	return nil
}

// MembershipForUser returns the user's membership, or ErrNoTeam
func (b *BoltDB) MembershipForUser(userID int64) (*Membership, error) {
	var found *Membership
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(membershipBucketName)).ForEach(func(k, v []byte) error {
			var m Membership
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("unmarshaling membership: %w", err)
			}
			if m.UserID == userID {
				found = &m
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoTeam
	}
	return found, nil
}

// CreateMembership stores a membership, re-checking the one-team invariant
// inside the transaction
func (b *BoltDB) CreateMembership(membership *Membership) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(membershipBucketName))
		if err := rejectExistingMembership(bucket, membership.UserID); err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating membership id: %w", err)
		}
		membership.ID = int64(seq)
		return putJSON(bucket, membership.ID, membership)
	})
}

// CreateReceipt assigns an id and stores a new receipt
func (b *BoltDB) CreateReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating receipt id: %w", err)
		}
		receipt.ID = int64(seq)
		return putJSON(bucket, receipt.ID, receipt)
	})
}

// GetReceipt retrieves a receipt by id
func (b *BoltDB) GetReceipt(id int64) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptBucketName)).Get(itob(id))
		if data == nil {
			return ErrReceiptNotFound
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListTeamReceipts returns a team's receipts with dates in [from, to],
// ordered by date ascending
func (b *BoltDB) ListTeamReceipts(teamID int64, from, to time.Time) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucketName)).ForEach(func(k, v []byte) error {
			var r Receipt
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			if r.TeamID != teamID {
				return nil
			}
			if r.Date.Before(from) || r.Date.After(to) {
				return nil
			}
			receipts = append(receipts, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Date.Before(receipts[j].Date)
	})
	return receipts, nil
}

// UpdateReceiptStatus changes a receipt's status
func (b *BoltDB) UpdateReceiptStatus(id int64, status Status) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data := bucket.Get(itob(id))
		if data == nil {
			return ErrReceiptNotFound
		}
		var r Receipt
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshaling receipt: %w", err)
		}
		r.Status = status
		return putJSON(bucket, r.ID, &r)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
