package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"peerhub/internal/models"
)

// languageMap translates editor language ids to the execution service's
// language names.
var languageMap = map[string]string{
	"javascript": "nodejs",
	"python":     "python3",
	"java":       "java",
	"cpp":        "cpp17",
	"c":          "c",
}

// Runner forwards code to the external execution service. It never holds a
// room lock; runs are independent request/response calls.
type Runner struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        *http.Client
}

func NewRunner(baseURL, clientID, clientSecret string) *Runner {
	return &Runner{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpc:        &http.Client{Timeout: 30 * time.Second},
	}
}

// MapLanguage returns the execution service name for an editor language id,
// falling back to nodejs for unknown ids.
func MapLanguage(languageID string) string {
	if mapped, ok := languageMap[languageID]; ok {
		return mapped
	}
	return "nodejs"
}

type executeRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
}

type executeResponse struct {
	Output  string `json:"output"`
	Memory  string `json:"memory"`
	CPUTime string `json:"cpuTime"`
	Error   string `json:"error"`
}

// Run executes code remotely and returns its output.
func (r *Runner) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	body, err := json.Marshal(executeRequest{
		ClientID:     r.clientID,
		ClientSecret: r.clientSecret,
		Script:       req.Code,
		Language:     MapLanguage(req.LanguageID),
		VersionIndex: "0",
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execution service: %w", err)
	}
	defer resp.Body.Close()

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("execution service: decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("execution service: %s", out.Error)
		}
		return nil, fmt.Errorf("execution service: status %d", resp.StatusCode)
	}

	return &models.RunResult{
		Output:  out.Output,
		Memory:  out.Memory,
		CPUTime: out.CPUTime,
	}, nil
}
