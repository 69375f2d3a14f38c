package object

import (
	"context"
	"strings"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// Read implements repo.Repo.
func (r *Repo) Read(ctx context.Context, req repo.ReadRequest) (*repo.ReadResult, error) {
	if err := r.checkToken(req.Token); err != nil {
		return nil, err
	}
	if err := req.Token.RequireVariant(repo.TokenExistingRepresented); err != nil {
		return nil, err
	}

	rec, err := r.recordOf(req.Token)
	if err != nil {
		return nil, err
	}
	slot := req.Token.Slot()

	if !slot.IsContainer() {
		return r.readNonContainer(ctx, slot, rec, req.Accept)
	}
	return r.readContainer(ctx, slot, rec, req.Accept)
}

func (r *Repo) readNonContainer(ctx context.Context, slot *space.ResourceSlot, rec *resourceRecord, accept []string) (*repo.ReadResult, error) {
	if !acceptable(accept, rec.meta.ContentType) {
		return nil, repo.NewError(repo.ErrNotAcceptable,
			"stored representation has no acceptable content type", string(slot.URI()))
	}

	obj, err := r.rctx.Store().Get(ctx, rec.key)
	if err != nil {
		return nil, r.mapStoreErr(err, slot.URI())
	}
	return &repo.ReadResult{
		Slot: slot,
		Representation: &repo.Representation{
			Metadata: repMetadataOf(&obj.Meta),
			Data:     obj.Data,
		},
	}, nil
}

func (r *Repo) readContainer(ctx context.Context, slot *space.ResourceSlot, rec *resourceRecord, accept []string) (*repo.ReadResult, error) {
	containment, err := r.listContainment(ctx, slot.URI())
	if err != nil {
		return nil, err
	}

	switch {
	case acceptable(accept, rec.meta.ContentType):
		obj, gerr := r.rctx.Store().Get(ctx, rec.key)
		if gerr != nil {
			return nil, r.mapStoreErr(gerr, slot.URI())
		}
		return &repo.ReadResult{
			Slot: slot,
			Representation: &repo.Representation{
				Metadata: repMetadataOf(&obj.Meta),
				Data:     obj.Data,
			},
			Containment: containment,
		}, nil

	case acceptable(accept, repo.ContentTypeURIList):
		// The containment rendering is derived, so it carries the
		// container's validators rather than its own.
		rep := renderURIList(containment)
		rep.Metadata.LastModified = rec.meta.LastModified
		rep.Metadata.ETag = rec.meta.ETag
		return &repo.ReadResult{
			Slot:           slot,
			Representation: rep,
			Containment:    containment,
		}, nil

	default:
		return nil, repo.NewError(repo.ErrNotAcceptable,
			"container representation has no acceptable content type", string(slot.URI()))
	}
}

// renderURIList renders a containment listing as a text/uri-list document,
// one URI per CRLF-terminated line.
func renderURIList(uris []space.ResourceURI) *repo.Representation {
	var b strings.Builder
	for _, u := range uris {
		b.WriteString(string(u))
		b.WriteString("\r\n")
	}
	return repo.NewBytesRepresentation(repo.ContentTypeURIList, []byte(b.String()))
}

// acceptable reports whether a content type satisfies an accept list.
// Empty accept lists accept anything; entries support "type/*" and "*/*"
// wildcards. Quality-weighted negotiation is a layer concern.
func acceptable(accept []string, contentType string) bool {
	if len(accept) == 0 {
		return true
	}
	ct := mediaType(contentType)
	major, _, _ := strings.Cut(ct, "/")
	for _, a := range accept {
		switch mediaType(a) {
		case ct, major + "/*", "*/*":
			return true
		}
	}
	return false
}

// mediaType strips parameters and normalizes case of a media type.
func mediaType(s string) string {
	s, _, _ = strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(s))
}

// recordOf extracts the backend record a token carries.
func (r *Repo) recordOf(t *repo.StatusToken) (*resourceRecord, error) {
	rec, ok := t.BackendState().(*resourceRecord)
	if !ok || rec == nil {
		return nil, repo.NewError(repo.ErrTokenMismatch,
			"status token carries no backend record", string(t.URI()))
	}
	return rec, nil
}
