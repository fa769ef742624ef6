package services

import (
	"errors"
	"fmt"
)

// Таксономия ошибок движка. Конкретные ошибки оборачивают одну из них,
// поэтому errors.Is работает и с конкретной ошибкой, и с её категорией.
var (
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUnauthorized       = errors.New("operation not allowed for the current user")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("requested resource not found")
	ErrConflictRetry      = errors.New("resource was modified concurrently, retry")
)

var (
	// Ресурсы
	ErrTournamentNotFound  = fmt.Errorf("%w: tournament not found", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("%w: participant registration not found", ErrNotFound)
	ErrMatchNotFound       = fmt.Errorf("%w: match not found", ErrNotFound)

	// Жизненный цикл матча
	ErrMatchNotPending              = fmt.Errorf("%w: match is not pending", ErrPreconditionFailed)
	ErrPlayersNotReady              = fmt.Errorf("%w: both players must be ready", ErrPreconditionFailed)
	ErrMatchNotAwaitingConfirmation = fmt.Errorf("%w: match is not awaiting confirmation", ErrPreconditionFailed)
	ErrMatchNotDisputed             = fmt.Errorf("%w: match is not disputed", ErrPreconditionFailed)
	ErrMatchAlreadyConfirmed        = fmt.Errorf("%w: match is already confirmed", ErrPreconditionFailed)
	ErrOpponentSlotEmpty            = fmt.Errorf("%w: opponent has not been decided yet", ErrPreconditionFailed)
	ErrNotMatchParticipant          = fmt.Errorf("%w: not a participant of this match", ErrUnauthorized)
	ErrSubmitterCannotRespond       = fmt.Errorf("%w: submitter cannot confirm or dispute own score", ErrUnauthorized)
	ErrPlayerBanned                 = fmt.Errorf("%w: player is banned from this match", ErrUnauthorized)
	ErrNegativeScore                = fmt.Errorf("%w: scores must be non-negative", ErrInvalidInput)
	ErrKnockoutDraw                 = fmt.Errorf("%w: knockout match cannot end in a draw", ErrInvalidInput)

	// Турниры и регистрация
	ErrNotTournamentAdmin                = fmt.Errorf("%w: tournament admin rights required", ErrUnauthorized)
	ErrRegistrationNotOpen               = fmt.Errorf("%w: tournament registration is not open", ErrPreconditionFailed)
	ErrTournamentFull                    = fmt.Errorf("%w: tournament registration is full", ErrPreconditionFailed)
	ErrRegistrationConflict              = fmt.Errorf("%w: user is already registered for this tournament", ErrPreconditionFailed)
	ErrParticipantNotPending             = fmt.Errorf("%w: participant is not pending approval", ErrPreconditionFailed)
	ErrTournamentSlugConflict            = fmt.Errorf("%w: tournament with this name already exists", ErrPreconditionFailed)
	ErrTournamentInvalidStatusTransition = fmt.Errorf("%w: invalid tournament status transition", ErrPreconditionFailed)
	ErrTournamentNotLive                 = fmt.Errorf("%w: tournament is not live", ErrPreconditionFailed)
	ErrTournamentFormatMismatch          = fmt.Errorf("%w: operation does not match tournament format", ErrPreconditionFailed)
	ErrNotEnoughParticipants             = fmt.Errorf("%w: at least 2 approved participants required", ErrPreconditionFailed)
	ErrParticipantWithoutGroup           = fmt.Errorf("%w: every approved participant needs a group", ErrPreconditionFailed)
	ErrGroupStageIncomplete              = fmt.Errorf("%w: group stage has unconfirmed matches", ErrPreconditionFailed)
	ErrTooManyParticipants               = fmt.Errorf("%w: knockout bracket supports at most 16 entrants", ErrInvalidInput)
	ErrGroupAssignmentLocked             = fmt.Errorf("%w: groups can only change while registration is open", ErrPreconditionFailed)

	// Валидация
	ErrTournamentNameRequired    = fmt.Errorf("%w: tournament name is required", ErrInvalidInput)
	ErrTournamentInvalidFormat   = fmt.Errorf("%w: unknown tournament format", ErrInvalidInput)
	ErrTournamentInvalidCapacity = fmt.Errorf("%w: max players must be at least 2", ErrInvalidInput)
	ErrTournamentInvalidPrize    = fmt.Errorf("%w: prize amount must be non-negative", ErrInvalidInput)
	ErrDisplayNameRequired       = fmt.Errorf("%w: display name is required", ErrInvalidInput)
)
