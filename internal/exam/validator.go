package exam

import (
	"fmt"
	"net/url"
	"strings"
)

func ValidateCreateExam(req CreateExamRequest, cfg Config) []ValidationErrorItem {
	errs := make([]ValidationErrorItem, 0)
	if req.URL == nil || strings.TrimSpace(*req.URL) == "" {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-REQ-001", Path: "url", Message: "url is required"})
	} else if err := validateEmbedURL(*req.URL); err != nil {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-REQ-002", Path: "url", Message: err.Error()})
	}
	if req.Password == nil {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-REQ-003", Path: "password", Message: "password is required"})
	} else if HashAlgorithm(cfg.HashAlgorithm) == AlgorithmBcrypt && len(*req.Password) > maxBcryptPassword {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-REQ-004", Path: "password", Message: fmt.Sprintf("password must be at most %d bytes", maxBcryptPassword)})
	}
	return errs
}

func ValidateVerify(req VerifyRequest) []ValidationErrorItem {
	errs := make([]ValidationErrorItem, 0)
	if req.Password == nil {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-REQ-003", Path: "password", Message: "password is required"})
	}
	return errs
}

func ValidateLogEvent(req LogEventRequest) []ValidationErrorItem {
	errs := make([]ValidationErrorItem, 0)
	if req.Type == nil || strings.TrimSpace(*req.Type) == "" {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-LOG-001", Path: "type", Message: "type is required"})
	}
	if req.TS != nil && *req.TS < 0 {
		errs = append(errs, ValidationErrorItem{Code: "EXAM-LOG-002", Path: "ts", Message: "ts must be milliseconds since epoch"})
	}
	return errs
}

// validateEmbedURL accepts absolute http(s) URLs with a host.
func validateEmbedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("url must be absolute")
	}
	return nil
}
