package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/escofresco/transfer/internal/shared"
)

// CallbackResult is the outcome of an OAuth redirect.
type CallbackResult struct {
	URL string // Request URI including the query, as the provider sent it
	Err error
}

// CallbackHandler handles the OAuth2 redirect of an authorization-code flow.
type CallbackHandler struct {
	state      string
	resultChan chan CallbackResult
	once       sync.Once

	mu  sync.Mutex
	hit bool
}

// NewCallbackHandler creates a handler expecting state. The state should be random per login.
func NewCallbackHandler(state string) *CallbackHandler {
	return &CallbackHandler{
		state:      state,
		resultChan: make(chan CallbackResult, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the state parameter and forwards the redirect.
//
// A redirect without a code is still forwarded so the login reports the provider's error.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.Send(CallbackResult{Err: fmt.Errorf("%w: got %q", shared.ErrStateMismatch, query.Get("state"))})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{URL: r.URL.RequestURI()})

	page := resultPage{Title: "Authorization Successful", Message: "You can close this window and return to the terminal."}
	status := http.StatusOK
	if query.Get("code") == "" {
		page = resultPage{Title: "Authorization Failed", Message: query.Get("error")}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = resultTemplate.Execute(w, page)
}

// Send delivers the result once and closes the channel.
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

type resultPage struct {
	Title   string
	Message string
}

var resultTemplate = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))
