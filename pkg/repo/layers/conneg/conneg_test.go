package conneg_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/backend/memory"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/conneg"
	"github.com/podstore/podstore/pkg/repo/object"
	"github.com/podstore/podstore/pkg/space"
)

// upperNegotiator serves text/x-upper by uppercasing a text
// representation, and refuses anything else.
type upperNegotiator struct{}

func (upperNegotiator) Negotiate(_ context.Context, rep *repo.Representation, accept []string) (*repo.Representation, error) {
	for _, a := range accept {
		if a != "text/x-upper" {
			continue
		}
		body, err := io.ReadAll(rep.Data)
		rep.Data.Close()
		if err != nil {
			return nil, err
		}
		return repo.NewBytesRepresentation("text/x-upper", []byte(strings.ToUpper(string(body)))), nil
	}
	return nil, repo.NewError(repo.ErrNotAcceptable, "no derivable representation", "")
}

func newConnegRepo(t *testing.T) repo.Repo {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	sp, err := space.NewStorageSpace(
		space.MustParseResourceURI("https://pod.example/alice/"),
		[]string{"https://pod.example/alice/profile#me"},
	)
	require.NoError(t, err)

	r := conneg.New(object.New(sp, store), upperNegotiator{})
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func TestNegotiatedRead(t *testing.T) {
	r := newConnegRepo(t)
	ctx := context.Background()

	tok, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)

	rr, err := r.Read(ctx, repo.ReadRequest{Token: tok, Accept: []string{"text/x-upper"}})
	require.NoError(t, err)
	defer rr.Representation.Data.Close()

	body, err := io.ReadAll(rr.Representation.Data)
	require.NoError(t, err)
	assert.Equal(t, "text/x-upper", rr.Representation.Metadata.ContentType)
	assert.Contains(t, string(body), "LDP:BASICCONTAINER")
}

func TestUnnegotiableReadFails(t *testing.T) {
	r := newConnegRepo(t)
	ctx := context.Background()

	tok, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)

	_, err = r.Read(ctx, repo.ReadRequest{Token: tok, Accept: []string{"image/png"}})
	assert.True(t, repo.IsCode(err, repo.ErrNotAcceptable))
}

func TestEmptyAcceptBypassesNegotiation(t *testing.T) {
	r := newConnegRepo(t)
	ctx := context.Background()

	tok, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)

	rr, err := r.Read(ctx, repo.ReadRequest{Token: tok})
	require.NoError(t, err)
	defer rr.Representation.Data.Close()
	assert.Equal(t, "text/turtle", rr.Representation.Metadata.ContentType)
}
