package ingest

import "example.com/eventcollector/internal/domain"

// HeaderField maps one source header onto a field of domain.Headers.
type HeaderField struct {
	Name string
	Set  func(h *domain.Headers, v string)
}

// RequiredHeaders lists the headers every submission must carry. Names are
// lower-case; callers normalise incoming header names before parsing.
var RequiredHeaders = []HeaderField{
	{"content-length", func(h *domain.Headers, v string) { h.Length = v }},
	{"x-yttrex-build", func(h *domain.Headers, v string) { h.Build = v }},
	{"x-yttrex-version", func(h *domain.Headers, v string) { h.Version = v }},
	{"x-yttrex-userid", func(h *domain.Headers, v string) { h.ClientID = v }},
	{"x-yttrex-publickey", func(h *domain.Headers, v string) { h.PublicKey = v }},
	{"x-yttrex-signature", func(h *domain.Headers, v string) { h.Signature = v }},
}

// ParseHeaders copies every required header into a domain.Headers. A header
// counts as present when its key exists, even with an empty value. If any is
// absent nothing is returned except a *domain.MissingHeadersError naming all
// of them in the order of required.
func ParseHeaders(raw map[string]string, required []HeaderField) (domain.Headers, error) {
	var (
		out     domain.Headers
		missing []string
	)
	for _, f := range required {
		v, ok := raw[f.Name]
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		f.Set(&out, v)
	}
	if len(missing) > 0 {
		return domain.Headers{}, &domain.MissingHeadersError{Missing: missing}
	}
	return out, nil
}
