package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Formatter formats results for output.
type Formatter interface {
	FormatUpload(w io.Writer, results []UploadResult) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatStatus(w io.Writer, result *StatusResult) error
	FormatTicket(w io.Writer, ticket *Ticket) error
	FormatInspect(w io.Writer, result *InspectResult, showSecrets bool) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

// FormatUpload formats upload results as human-readable text. In quiet
// mode only the asset ids are printed, one per line.
func (f *HumanFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.LocalPath, r.Err)
			continue
		}
		if f.Quiet {
			_, _ = fmt.Fprintln(w, r.ID)
			continue
		}
		_, _ = fmt.Fprintf(w, "Uploaded: %s -> %s (%s)\n", r.LocalPath, r.ID, formatSize(r.Size))
		if r.ETag != "" {
			_, _ = fmt.Fprintf(w, "  ETag: %s\n", r.ETag)
		}
		if r.Status != "" {
			_, _ = fmt.Fprintf(w, "  Status: %s\n", r.Status)
		} else {
			_, _ = fmt.Fprintln(w, "  Status: (not recorded)")
		}
	}
	return nil
}

// FormatDownload formats download result as human-readable text.
func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}
	if result.LocalPath == "-" {
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.ID, formatSize(result.Size))
	} else {
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.ID, result.LocalPath, formatSize(result.Size))
	}
	if result.ETag != "" {
		_, _ = fmt.Fprintf(w, "  ETag: %s\n", result.ETag)
	}
	return nil
}

// FormatStatus formats a recorded status as human-readable text.
func (f *HumanFormatter) FormatStatus(w io.Writer, result *StatusResult) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "Status of %s set to %q\n", result.ID, result.Status)
	}
	return nil
}

// FormatTicket prints the capability URL. The URL is printed even in quiet
// mode since it is the whole point of the command.
func (f *HumanFormatter) FormatTicket(w io.Writer, ticket *Ticket) error {
	if f.Quiet || ticket.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintln(w, ticket.URL)
		return nil
	}
	_, _ = fmt.Fprintf(w, "ID:      %s\n", ticket.ID)
	_, _ = fmt.Fprintf(w, "URL:     %s\n", ticket.URL)
	_, _ = fmt.Fprintf(w, "Expires: %s\n", ticket.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

// FormatInspect formats a decoded capability URL as human-readable text.
func (f *HumanFormatter) FormatInspect(w io.Writer, result *InspectResult, showSecrets bool) error {
	state := "valid"
	if result.Expired {
		state = "expired"
	}
	_, _ = fmt.Fprintf(w, "Access Key: %s\n", maskSecret(result.AccessKey, showSecrets))
	_, _ = fmt.Fprintf(w, "Issued:     %s\n", result.IssuedAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Validity:   %s\n", time.Duration(result.ValiditySeconds)*time.Second)
	_, _ = fmt.Fprintf(w, "Expires:    %s (%s)\n", result.ExpiresAt.UTC().Format(time.RFC3339), state)
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

// FormatUpload formats upload results as JSON.
func (f *JSONFormatter) FormatUpload(w io.Writer, results []UploadResult) error {
	// Convert errors to strings for JSON output
	type jsonResult struct {
		LocalPath   string `json:"local_path"`
		ID          string `json:"id,omitempty"`
		ContentType string `json:"content_type,omitempty"`
		ETag        string `json:"etag,omitempty"`
		Size        int64  `json:"size_bytes,omitempty"`
		Status      string `json:"status,omitempty"`
		UploadedAt  string `json:"uploaded_at,omitempty"`
		Error       string `json:"error,omitempty"`
	}

	output := make([]jsonResult, len(results))
	for i := range results {
		r := &results[i]
		jr := jsonResult{
			LocalPath: r.LocalPath,
			ID:        r.ID,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		} else {
			jr.ContentType = r.ContentType
			jr.ETag = r.ETag
			jr.Size = r.Size
			jr.Status = r.Status
			jr.UploadedAt = r.UploadedAt.Format(time.RFC3339)
		}
		output[i] = jr
	}

	return writeJSON(w, output)
}

// FormatDownload formats download result as JSON.
func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

// FormatStatus formats a recorded status as JSON.
func (f *JSONFormatter) FormatStatus(w io.Writer, result *StatusResult) error {
	return writeJSON(w, result)
}

// FormatTicket formats a capability as JSON.
func (f *JSONFormatter) FormatTicket(w io.Writer, ticket *Ticket) error {
	return writeJSON(w, ticket)
}

// FormatInspect formats a decoded capability URL as JSON.
func (f *JSONFormatter) FormatInspect(w io.Writer, result *InspectResult, showSecrets bool) error {
	output := *result
	output.AccessKey = maskSecret(result.AccessKey, showSecrets)
	return writeJSON(w, output)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	}
	return writeJSON(w, output)
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes < 0:
		return "unknown size"
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	// Calculate column widths
	maxNameLen := 4     // "NAME"
	maxEndpointLen := 8 // "ENDPOINT"
	for i := range profiles {
		if len(profiles[i].Name) > maxNameLen {
			maxNameLen = len(profiles[i].Name)
		}
		if len(profiles[i].Endpoint) > maxEndpointLen {
			maxEndpointLen = len(profiles[i].Endpoint)
		}
	}
	if maxNameLen > 20 {
		maxNameLen = 20
	}
	if maxEndpointLen > 50 {
		maxEndpointLen = 50
	}

	_, _ = fmt.Fprintf(w, "  %-*s  %-*s  %s\n", maxNameLen, "NAME", maxEndpointLen, "ENDPOINT", "TIMEOUT")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", maxEndpointLen), strings.Repeat("-", 10))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}

		endpoint := p.Endpoint
		if len(endpoint) > maxEndpointLen {
			endpoint = endpoint[:maxEndpointLen-3] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-*s  %s\n", marker, maxNameLen, name, maxEndpointLen, endpoint, formatTimeout(p.DownloadTimeout))
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	_, _ = fmt.Fprintf(w, "Name:     %s", profile.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Timeout:  %s\n", formatTimeout(profile.DownloadTimeout))
	return nil
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string) error {
	type jsonProfile struct {
		Name            string `json:"name"`
		Endpoint        string `json:"endpoint"`
		DownloadTimeout int    `json:"download_timeout,omitempty"`
		Default         bool   `json:"default,omitempty"`
	}

	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}

	for i := range profiles {
		p := &profiles[i]
		output.Profiles[i] = jsonProfile{
			Name:            p.Name,
			Endpoint:        p.Endpoint,
			DownloadTimeout: p.DownloadTimeout,
			Default:         p.Name == defaultName,
		}
	}

	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault bool) error {
	output := struct {
		Name            string `json:"name"`
		Endpoint        string `json:"endpoint"`
		DownloadTimeout int    `json:"download_timeout"`
		Default         bool   `json:"default"`
	}{
		Name:            profile.Name,
		Endpoint:        profile.Endpoint,
		DownloadTimeout: profile.DownloadTimeout,
		Default:         isDefault,
	}

	return writeJSON(w, output)
}

// formatTimeout renders a download timeout in seconds, zero meaning the
// gateway decides.
func formatTimeout(seconds int) string {
	if seconds == 0 {
		return "(server)"
	}
	return (time.Duration(seconds) * time.Second).String()
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// If showSecrets is true, returns the original value.
// If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
