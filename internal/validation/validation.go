package validation

import (
	"fmt"
	"strings"
	"unicode"

	"wablast/internal/constants"
	"wablast/internal/errors"
)

// ValidatePhoneNumber validates recipient phone number format and length.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	cleaned := strings.TrimPrefix(phone, "+")
	cleaned = strings.TrimSuffix(cleaned, "@c.us")

	if len(cleaned) < constants.MinPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", constants.MinPhoneNumberLength))
	}
	if len(cleaned) > constants.MaxPhoneNumberLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number too long (max %d digits)", constants.MaxPhoneNumberLength))
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}

	return nil
}

// NormalizePhoneNumber strips the leading plus and any messaging network
// suffix, leaving bare digits for storage and comparison.
func NormalizePhoneNumber(phone string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	return strings.TrimSuffix(cleaned, "@c.us")
}

// ValidateTenantID validates tenant identifier format and length.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "tenant ID cannot be empty")
	}
	if len(tenantID) > constants.MaxTenantIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("tenant ID too long (max %d characters)", constants.MaxTenantIDLength))
	}

	for _, char := range tenantID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput,
				"tenant ID must contain only letters, numbers, underscores, and dashes")
		}
	}

	return nil
}

// ValidateCampaignName validates the user-supplied campaign name.
func ValidateCampaignName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "campaign name cannot be empty")
	}
	if len(name) > constants.MaxCampaignNameLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("campaign name too long (max %d characters)", constants.MaxCampaignNameLength))
	}
	for _, char := range name {
		if char == '\x00' || char == '\n' || char == '\r' {
			return errors.New(errors.ErrCodeInvalidInput, "campaign name contains invalid characters")
		}
	}
	return nil
}

// ValidateMessageBody validates outbound message content.
func ValidateMessageBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "message body cannot be empty")
	}
	if len(body) > constants.MaxMessageLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("message too long (max %d characters)", constants.MaxMessageLength))
	}
	return nil
}
