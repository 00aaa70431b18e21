package receipt

import "errors"

// Business failures are sentinel errors so callers can match them with
// errors.Is and report them to the user verbatim. Anything else that
// escapes the service is an internal fault wrapped with ErrInternal.
var (
	// ErrUserNotFound is returned when the requester has never contacted the bot.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoTeam is returned when the requester does not belong to any team.
	ErrNoTeam = errors.New("user is not in any team")

	// ErrUnsupportedType is returned for files outside the media allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned when the declared file size exceeds the ceiling.
	ErrTooLarge = errors.New("file is too large")

	// ErrIncompleteExtraction is returned when text was extracted but the
	// required date or amount could not be found in it.
	ErrIncompleteExtraction = errors.New("could not find date and amount on the receipt")

	// ErrTeamNameTaken is returned when a team with that name already exists.
	ErrTeamNameTaken = errors.New("team name already taken")

	// ErrAlreadyInTeam is returned when the acting user already has a membership.
	ErrAlreadyInTeam = errors.New("user already belongs to a team")

	// ErrNotAdmin is returned when the acting user is not an admin of the
	// team the operation concerns.
	ErrNotAdmin = errors.New("user is not a team admin")

	// ErrTargetNotFound is returned when the invited username is unknown.
	ErrTargetNotFound = errors.New("target user not found")

	// ErrTargetAlreadyInTeam is returned when the invited user already has a team.
	ErrTargetAlreadyInTeam = errors.New("target user already belongs to a team")

	// ErrReceiptNotFound is returned for unknown receipt ids.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid receipt status")

	// ErrInternal wraps unexpected failures; the cause is logged, not shown.
	ErrInternal = errors.New("internal error")
)
