package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beam-cloud/airkv/pkg/remote"
	"github.com/beam-cloud/airkv/pkg/types"
)

// KindErrorMessages maps error kinds to human-readable titles
var KindErrorMessages = map[types.ErrorKind]string{
	types.KindNotFound:           "Not found",
	types.KindInvalidInput:       "Invalid input",
	types.KindBackendUnavailable: "Local storage unavailable",
	types.KindRemoteFailure:      "Remote request failed",
	types.KindPersistenceFailure: "Could not save settings",
}

// CodeErrorSuggestions provides helpful suggestions for specific error codes
var CodeErrorSuggestions = map[string][]string{
	types.ErrNotAKvRoot.Code: {
		"Point at the project directory that contains " + CodeStyle.Render(".wrangler/state/v3/kv"),
		"Run the local dev server once so the emulator creates its state",
	},
	types.ErrCatalogMissing.Code: {
		"The namespace directory has no catalog database yet",
		"Write a key through the local dev server to create it",
	},
	types.ErrFolderNotFound.Code: {
		"List registered folders: " + CodeStyle.Render("airkv folder list"),
	},
	types.ErrConnectionNotFound.Code: {
		"Connect an account first: " + CodeStyle.Render("airkv remote connect <account-id> --token <token>"),
		"Pass " + CodeStyle.Render("--account <id>") + " when more than one account is connected",
	},
	types.ErrInvalidNamespaceID.Code: {
		"Local namespace ids look like " + CodeStyle.Render("folder-<id>-ns-<name>"),
		"List namespaces: " + CodeStyle.Render("airkv folder open <id>") + " or " + CodeStyle.Render("airkv remote namespaces"),
	},
	types.ErrInvalidJSON.Code: {
		"Values must be valid JSON, quote plain strings: " + CodeStyle.Render(`'"hello"'`),
	},
}

var authSuggestions = []string{
	"Check that your token is correct: " + CodeStyle.Render("--token <token>"),
	"The token needs read and write access to Workers KV storage",
}

// FormatError converts an error to a human-readable message.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var kvErr *types.Error
	if errors.As(err, &kvErr) {
		if title, ok := KindErrorMessages[kvErr.Kind]; ok && !strings.EqualFold(title, kvErr.Message) {
			return fmt.Sprintf("%s (%s)", title, kvErr.Message)
		}
		return kvErr.Message
	}

	return cleanErrorMessage(err.Error())
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	if err == nil {
		return nil
	}
	if remote.IsAuthError(err) {
		return authSuggestions
	}

	var kvErr *types.Error
	if errors.As(err, &kvErr) {
		return CodeErrorSuggestions[kvErr.Code]
	}
	return nil
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	// Remove redundant prefixes
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")

	// For deeply nested errors, just show the most relevant part
	if parts := strings.Split(msg, ": "); len(parts) > 3 {
		msg = parts[0] + ": " + parts[len(parts)-1]
	}

	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	if IsJSONOutput() {
		PrintJSON(errorOutput(err))
		return
	}

	fmt.Fprintln(stdout)
	PrintErrorMsg(title)

	if err != nil {
		fmt.Fprintf(stdout, "  %s\n", DimStyle.Render(FormatError(err)))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions("Suggestions:", suggestions)
		}
	}
	fmt.Fprintln(stdout)
}

type jsonError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

func errorOutput(err error) jsonError {
	out := jsonError{Error: err.Error()}
	var kvErr *types.Error
	if errors.As(err, &kvErr) {
		out.Code = kvErr.Code
		out.Kind = string(kvErr.Kind)
	}
	return out
}
