package editor

import (
	"errors"

	"schoolhub/internal/client"
)

var (
	ErrImmutableRole  = errors.New("role permissions cannot be edited")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrNotOpen        = errors.New("editor is not open")
	ErrUnknownRole    = errors.New("unknown role")
	ErrUnknownModule  = errors.New("unknown module")
)

// ValidationError is returned by Save when the edited data is rejected
// before any request is made
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// BannerKind distinguishes success from error banners
type BannerKind int

const (
	BannerSuccess BannerKind = iota + 1
	BannerError
)

// Banner is the inline message shown after a save attempt
type Banner struct {
	Kind BannerKind
	Text string
}

type messages struct {
	notFound  string
	forbidden string
	invalid   string
	fallback  string
}

var permissionMessages = messages{
	notFound:  "Role not found. Please refresh and try again.",
	forbidden: "You do not have permission to update role permissions.",
	invalid:   "Invalid permission data. Please check your selections.",
	fallback:  "Failed to update permissions. Please try again.",
}

var moduleMessages = messages{
	notFound:  "Role not found. Please refresh and try again.",
	forbidden: "You do not have permission to update role modules.",
	invalid:   "Invalid module data. Please check your selections.",
	fallback:  "Failed to update modules. Please try again.",
}

func (m messages) forError(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	switch client.KindOf(err) {
	case client.KindNotFound:
		return m.notFound
	case client.KindForbidden:
		return m.forbidden
	case client.KindInvalidPayload:
		return m.invalid
	case client.KindServer:
		return "Server error. Please try again later."
	case client.KindNetwork:
		return "Network error. Please check your connection and try again."
	}
	if msg := client.MessageOf(err); msg != "" {
		return msg
	}
	return m.fallback
}

// PermissionErrorMessage is the banner text the permission editor shows for err
func PermissionErrorMessage(err error) string { return permissionMessages.forError(err) }

// ModuleErrorMessage is the banner text the module editor shows for err
func ModuleErrorMessage(err error) string { return moduleMessages.forError(err) }
