package cli

// ErrorCode defines error types for CLI operations
type ErrorCode string

const (
	InvalidArguments ErrorCode = "InvalidArguments"
	InvalidFlag      ErrorCode = "InvalidFlag"
	NoResults        ErrorCode = "NoResults"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}
