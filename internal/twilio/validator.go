package twilio

import (
	"net/http"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's HMAC signature of a webhook request.
const SignatureHeader = "X-Twilio-Signature"

// Validator checks that webhook requests were signed with the account auth token.
type Validator struct {
	rv        client.RequestValidator
	publicURL string
}

// NewValidator returns a Validator for authToken. publicURL is the webhook
// address configured in the Twilio console; when empty it is rebuilt from the
// request, honouring X-Forwarded-Proto.
func NewValidator(authToken, publicURL string) *Validator {
	return &Validator{rv: client.NewRequestValidator(authToken), publicURL: publicURL}
}

// Verify reports whether r carries a valid signature. The form must already
// be parsed.
func (v *Validator) Verify(r *http.Request) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return v.rv.Validate(v.requestURL(r), params, sig)
}

func (v *Validator) requestURL(r *http.Request) string {
	if v.publicURL != "" {
		return v.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
