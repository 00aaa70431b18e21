package receipt

import (
	"errors"
	"log/slog"
	"strings"
)

// TeamOf returns the team the user currently belongs to, or ErrNoTeam.
func (s *Service) TeamOf(userID int64) (*Team, error) {
	membership, err := s.db.MembershipForUser(userID)
	if err != nil {
		if errors.Is(err, ErrNoTeam) {
			return nil, err
		}
		return nil, internalErr(err)
	}
	team, err := s.db.GetTeam(membership.TeamID)
	if err != nil {
		return nil, internalErr(err)
	}
	return team, nil
}

// IsAdmin reports whether the user is an admin of the given team.
func (s *Service) IsAdmin(teamID, userID int64) bool {
	membership, err := s.db.MembershipForUser(userID)
	if err != nil {
		return false
	}
	return membership.TeamID == teamID && membership.IsAdmin
}

// CreateTeam creates a team and makes the creator its sole admin, both in
// one transaction. Fails with ErrAlreadyInTeam when the creator already has
// a membership, or ErrTeamNameTaken on a name conflict.
func (s *Service) CreateTeam(telegramID int64, name string) (*Team, error) {
	name = strings.TrimSpace(name)

	user, err := s.db.GetUserByTelegramID(telegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, internalErr(err)
	}

	// Pre-check for a friendlier failure; the create transaction re-checks
	// the one-team invariant anyway.
	if _, err := s.db.MembershipForUser(user.ID); err == nil {
		return nil, ErrAlreadyInTeam
	} else if !errors.Is(err, ErrNoTeam) {
		return nil, internalErr(err)
	}

	team := &Team{Name: name, CreatedAt: s.timeSource.Now()}
	membership := &Membership{UserID: user.ID, IsAdmin: true}
	if err := s.db.CreateTeamWithAdmin(team, membership); err != nil {
		if errors.Is(err, ErrTeamNameTaken) || errors.Is(err, ErrAlreadyInTeam) {
			return nil, err
		}
		return nil, internalErr(err)
	}

	slog.Info("team created", "team_id", team.ID, "name", team.Name, "admin_user_id", user.ID)
	return team, nil
}

// Invite adds an existing, team-less user to the admin's team as a regular
// member. Only an admin of their own team may invite.
func (s *Service) Invite(adminTelegramID int64, targetUsername string) (*Membership, error) {
	admin, err := s.db.GetUserByTelegramID(adminTelegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, internalErr(err)
	}

	adminMembership, err := s.db.MembershipForUser(admin.ID)
	if err != nil {
		if errors.Is(err, ErrNoTeam) {
			return nil, err
		}
		return nil, internalErr(err)
	}
	if !adminMembership.IsAdmin {
		return nil, ErrNotAdmin
	}

	target, err := s.db.GetUserByUsername(strings.TrimPrefix(targetUsername, "@"))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, internalErr(err)
	}

	membership := &Membership{
		TeamID: adminMembership.TeamID,
		UserID: target.ID,
	}
	if err := s.db.CreateMembership(membership); err != nil {
		if errors.Is(err, ErrAlreadyInTeam) {
			return nil, ErrTargetAlreadyInTeam
		}
		return nil, internalErr(err)
	}

	slog.Info("user invited", "team_id", membership.TeamID, "user_id", target.ID, "invited_by", admin.ID)
	return membership, nil
}

// SetReceiptStatus changes a receipt's review status. The acting user must
// be an admin of the receipt's owning team, not merely any admin.
func (s *Service) SetReceiptStatus(adminTelegramID, receiptID int64, status Status) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	admin, err := s.db.GetUserByTelegramID(adminTelegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return internalErr(err)
	}

	rec, err := s.db.GetReceipt(receiptID)
	if err != nil {
		if errors.Is(err, ErrReceiptNotFound) {
			return err
		}
		return internalErr(err)
	}

	if !s.IsAdmin(rec.TeamID, admin.ID) {
		return ErrNotAdmin
	}

	if err := s.db.UpdateReceiptStatus(receiptID, status); err != nil {
		return internalErr(err)
	}

	slog.Info("receipt status changed", "receipt_id", receiptID, "status", status, "admin_user_id", admin.ID)
	return nil
}
