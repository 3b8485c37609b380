package service

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// LinkMode selects where signing links point.
type LinkMode string

const (
	// LinkModeRemote addresses a hosted form, prefilled through field-ID query parameters.
	LinkModeRemote LinkMode = "remote"
	// LinkModeInternal addresses the internally hosted form at /{route}/{token}.
	LinkModeInternal LinkMode = "internal"
)

// ErrInvalidLink is returned by ParseLink for URLs this builder could not have produced.
var ErrInvalidLink = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid signing link")

// RemoteForm describes a hosted form: its ID and the provider field ID of each
// prefill key. Keys without a mapping are sent under their own name.
type RemoteForm struct {
	FormID string
	Fields map[string]string
}

// LinkConfig configures a FormLinkBuilder.
type LinkConfig struct {
	Mode          LinkMode
	RemoteBaseURL string
	RemoteForms   map[domain.DocumentType]RemoteForm
	// TokenParam is the query parameter carrying the token on hosted forms.
	TokenParam    string
	PortalBaseURL string
}

// ParsedLink is what ParseLink recovers from a signing URL.
type ParsedLink struct {
	DocumentType domain.DocumentType
	Token        string
	Prefill      domain.Prefill
}

// FormLinkBuilder builds and parses signing links. It performs no I/O.
type FormLinkBuilder struct {
	mode       LinkMode
	baseURL    *url.URL
	tokenParam string
	forms      map[domain.DocumentType]RemoteForm
	// reverse lookups for ParseLink
	formTypes map[string]domain.DocumentType
	fieldKeys map[domain.DocumentType]map[string]string
}

// NewFormLinkBuilder validates cfg and returns a builder for its mode.
func NewFormLinkBuilder(cfg LinkConfig) (*FormLinkBuilder, error) {
	b := &FormLinkBuilder{
		mode:       cfg.Mode,
		tokenParam: cfg.TokenParam,
		forms:      make(map[domain.DocumentType]RemoteForm),
		formTypes:  make(map[string]domain.DocumentType),
		fieldKeys:  make(map[domain.DocumentType]map[string]string),
	}

	var rawBase string
	switch cfg.Mode {
	case LinkModeRemote:
		rawBase = cfg.RemoteBaseURL
		if b.tokenParam == "" {
			return nil, errors.New("remote link mode requires a token parameter")
		}
	case LinkModeInternal:
		rawBase = cfg.PortalBaseURL
	default:
		return nil, fmt.Errorf("unsupported link mode %q", cfg.Mode)
	}

	base, err := url.Parse(rawBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q for %s link mode", rawBase, cfg.Mode)
	}
	b.baseURL = base

	if cfg.Mode != LinkModeRemote {
		return b, nil
	}

	for documentType, form := range cfg.RemoteForms {
		if !documentType.Valid() {
			return nil, fmt.Errorf("remote form configured for unknown document type %q", documentType)
		}
		if form.FormID == "" {
			return nil, fmt.Errorf("remote form for %s has no form ID", documentType)
		}
		if other, dup := b.formTypes[form.FormID]; dup {
			return nil, fmt.Errorf("form ID %s is shared by %s and %s", form.FormID, other, documentType)
		}

		keys := make(map[string]string)
		for _, key := range domain.PrefillKeys(documentType) {
			fieldID := form.fieldID(key)
			if fieldID == b.tokenParam {
				return nil, fmt.Errorf("field %s of %s collides with the token parameter", key, documentType)
			}
			if other, dup := keys[fieldID]; dup {
				return nil, fmt.Errorf("fields %s and %s of %s share field ID %s", other, key, documentType, fieldID)
			}
			keys[fieldID] = key
		}

		b.forms[documentType] = form
		b.formTypes[form.FormID] = documentType
		b.fieldKeys[documentType] = keys
	}

	return b, nil
}

// Mode returns the configured link mode.
func (b *FormLinkBuilder) Mode() LinkMode {
	return b.mode
}

// BuildLink serializes the prefill snapshot and token into a URL. Query parameters
// are encoded in sorted key order so the same input always yields the same link.
func (b *FormLinkBuilder) BuildLink(
	documentType domain.DocumentType,
	prefill domain.Prefill,
	token string,
) (string, error) {
	if token == "" {
		return "", errors.New("signing link requires a token")
	}
	if prefill == nil || prefill.DocumentType() != documentType {
		return "", apperrors.Wrapf(domain.ErrInvalidPrefill, "prefill does not match %s", documentType)
	}

	u := *b.baseURL
	query := url.Values{}

	switch b.mode {
	case LinkModeRemote:
		form, ok := b.forms[documentType]
		if !ok {
			return "", fmt.Errorf("no hosted form configured for %s", documentType)
		}
		u.Path = path.Join("/", u.Path, form.FormID)
		for key, value := range domain.PrefillValues(prefill) {
			query.Set(form.fieldID(key), value)
		}
		query.Set(b.tokenParam, token)
	default:
		u.Path = path.Join("/", u.Path, documentType.Route(), token)
		for key, value := range domain.PrefillValues(prefill) {
			query.Set(key, value)
		}
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ParseLink recovers the document type, token and prefill from a link produced by
// BuildLink in the same mode.
func (b *FormLinkBuilder) ParseLink(link string) (*ParsedLink, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, apperrors.Wrap(ErrInvalidLink, err.Error())
	}

	segments := strings.Split(strings.Trim(strings.TrimPrefix(u.Path, b.baseURL.Path), "/"), "/")
	query := u.Query()
	values := make(map[string]string)

	parsed := &ParsedLink{}
	switch b.mode {
	case LinkModeRemote:
		formID := segments[len(segments)-1]
		documentType, ok := b.formTypes[formID]
		if !ok {
			return nil, apperrors.Wrapf(ErrInvalidLink, "unknown form %q", formID)
		}
		parsed.DocumentType = documentType
		parsed.Token = query.Get(b.tokenParam)
		query.Del(b.tokenParam)

		for fieldID := range query {
			key, ok := b.fieldKeys[documentType][fieldID]
			if !ok {
				return nil, apperrors.Wrapf(ErrInvalidLink, "unknown field %q", fieldID)
			}
			values[key] = query.Get(fieldID)
		}
	default:
		if len(segments) != 2 {
			return nil, apperrors.Wrap(ErrInvalidLink, "expected /{form}/{token}")
		}
		documentType, ok := domain.DocumentTypeForRoute(segments[0])
		if !ok {
			return nil, apperrors.Wrapf(ErrInvalidLink, "unknown form route %q", segments[0])
		}
		parsed.DocumentType = documentType
		parsed.Token = segments[1]
		for key := range query {
			values[key] = query.Get(key)
		}
	}

	if parsed.Token == "" {
		return nil, apperrors.Wrap(ErrInvalidLink, "missing token")
	}

	parsed.Prefill, err = domain.RestorePrefill(parsed.DocumentType, values)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func (f RemoteForm) fieldID(key string) string {
	if id, ok := f.Fields[key]; ok && id != "" {
		return id
	}
	return key
}
