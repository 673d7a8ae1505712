package validation

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonEmptyInput         Reason = "EmptyInput"
	ReasonFormatMismatch     Reason = "FormatMismatch"
	ReasonBlockedAddress     Reason = "BlockedAddress"
	ReasonTooShort           Reason = "TooShort"
	ReasonTooLong            Reason = "TooLong"
	ReasonInvalidCharacters  Reason = "InvalidCharacters"
	ReasonBoundaryCharacter  Reason = "BoundaryCharacter"
	ReasonConsecutiveSpecial Reason = "ConsecutiveSpecial"
	ReasonTooLarge           Reason = "TooLarge"
	ReasonUnsupportedType    Reason = "UnsupportedType"
)

// Result is the outcome of a check. Malformed input is reported here and
// never as an error.
type Result struct {
	Valid   bool
	Reason  Reason
	Message string
}

func pass(message string) Result {
	return Result{Valid: true, Message: message}
}

func fail(reason Reason, message string) Result {
	return Result{Reason: reason, Message: message}
}

const (
	MinHandleLength = 3
	MaxHandleLength = 30

	// MaxImageSize is 5 MiB.
	MaxImageSize = 5 * 1024 * 1024
)

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	handlePattern  = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)

	blockedAddresses = map[string]bool{
		"0x0000000000000000000000000000000000000000": true,
		"0x000000000000000000000000000000000000dead": true,
	}

	consecutiveSpecials = []string{"__", "..", "._", "_."}

	imageExtensions = map[string]bool{
		"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true,
	}
)

// ValidateAddress checks a BEP20 wallet address.
func ValidateAddress(address string) Result {
	address = strings.TrimSpace(address)
	if address == "" {
		return fail(ReasonEmptyInput, "Address cannot be empty")
	}

	if !addressPattern.MatchString(address) {
		return fail(ReasonFormatMismatch, "Invalid BEP20 address format. Must be 42 characters starting with 0x")
	}

	if blockedAddresses[strings.ToLower(address)] {
		return fail(ReasonBlockedAddress, "Invalid address: Cannot use zero or dead addresses")
	}

	return pass("Valid BEP20 address")
}

// NormalizeHandle strips a single leading "@" and surrounding whitespace.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.TrimSpace(handle)
}

// ValidateHandle checks a social-media username. The first violated rule
// determines the reason.
func ValidateHandle(handle string) Result {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return fail(ReasonEmptyInput, "Username cannot be empty")
	}

	if utf8.RuneCountInString(handle) < MinHandleLength {
		return fail(ReasonTooShort, "Username must be at least 3 characters long")
	}

	if utf8.RuneCountInString(handle) > MaxHandleLength {
		return fail(ReasonTooLong, "Username cannot be longer than 30 characters")
	}

	if !handlePattern.MatchString(handle) {
		return fail(ReasonInvalidCharacters, "Username can only contain letters, numbers, underscores, and dots")
	}

	if isSpecial(handle[0]) {
		return fail(ReasonBoundaryCharacter, "Username cannot start with underscore or dot")
	}
	if isSpecial(handle[len(handle)-1]) {
		return fail(ReasonBoundaryCharacter, "Username cannot end with underscore or dot")
	}

	for _, seq := range consecutiveSpecials {
		if strings.Contains(handle, seq) {
			return fail(ReasonConsecutiveSpecial, "Username cannot contain consecutive special characters")
		}
	}

	return pass("Valid username")
}

func isSpecial(c byte) bool {
	return c == '_' || c == '.'
}

// ValidateImageAsset checks the metadata of an uploaded screenshot.
func ValidateImageAsset(sizeBytes int64, fileName string) Result {
	if sizeBytes > MaxImageSize {
		return fail(ReasonTooLarge, "File size too large. Maximum 5MB allowed")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if !imageExtensions[ext] {
		return fail(ReasonUnsupportedType, "Invalid file type. Please send image files only (jpg, png, gif, etc.)")
	}

	return pass("Valid screenshot")
}
