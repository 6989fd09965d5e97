package harness

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arun0009/systemcerts/pkg/client"
	"github.com/arun0009/systemcerts/pkg/systemcerts"
)

func fakeSurface(name string, explicit, def func() (Reply, error)) Surface {
	return Surface{
		Name:      name,
		CheckBody: true,
		Call: func(_ context.Context, _ string, v client.Verify) (Reply, error) {
			if v.IsSet() {
				return explicit()
			}
			return def()
		},
	}
}

var (
	trustErr = &client.ConnectError{Op: "GET", URL: "https://x", Err: &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}}
	okReply  = Reply{StatusCode: http.StatusOK, OK: true, Body: []byte(`{"message":"Hello World"}`)}
)

func refused() (Reply, error) { return Reply{}, trustErr }
func served() (Reply, error)  { return okReply, nil }

func TestRunJudgesBothHalves(t *testing.T) {
	surfaces := []Surface{
		fakeSurface("good", refused, served),
		fakeSurface("leaky", served, served),
		fakeSurface("wrong-error", func() (Reply, error) { return Reply{}, errors.New("connection reset") }, served),
		fakeSurface("unpatched", refused, refused),
		fakeSurface("bad-status", refused, func() (Reply, error) { return Reply{StatusCode: 500}, nil }),
		fakeSurface("bad-body", refused, func() (Reply, error) {
			return Reply{StatusCode: 200, OK: true, Body: []byte(`{"message":"nope"}`)}, nil
		}),
	}
	results := Run(context.Background(), "https://x", surfaces, 3)
	require.Len(t, results, 12)

	for i, s := range surfaces {
		assert.Equal(t, s.Name, results[2*i].Surface)
		assert.Equal(t, PhaseExplicit, results[2*i].Phase)
		assert.Equal(t, PhaseDefault, results[2*i+1].Phase)
	}

	assert.True(t, results[0].Passed())
	assert.True(t, results[1].Passed())
	assert.NoError(t, results[1].Err())

	assert.EqualError(t, results[2].Err(), "leaky worked without system certs")
	assert.Contains(t, results[4].Err().Error(), "wrong-error failed without a trust error")
	assert.Contains(t, results[7].Err().Error(), "unpatched patch failed")
	assert.EqualError(t, results[9].Err(), "bad-status patch failed: status 500")
	assert.Contains(t, results[11].Err().Error(), "bad-body returned unexpected body")

	err := Failures(results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leaky")
	assert.NotContains(t, err.Error(), "good")
}

func TestFailuresNilWhenAllPass(t *testing.T) {
	results := Run(context.Background(), "https://x", []Surface{fakeSurface("good", refused, served)}, 0)
	assert.NoError(t, Failures(results))
}

func TestSurfaceNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Surfaces() {
		assert.False(t, seen[s.Name], "duplicate surface %s", s.Name)
		seen[s.Name] = true
		assert.NotNil(t, s.Call, s.Name)
	}
	assert.Len(t, seen, 19)
}

func TestLookup(t *testing.T) {
	got, err := Lookup("get", "grpc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "get", got[0].Name)
	assert.Equal(t, "grpc", got[1].Name)

	_, err = Lookup("carrier-pigeon")
	assert.EqualError(t, err, `unknown surface "carrier-pigeon"`)
}

func TestWebsocketURL(t *testing.T) {
	u, err := WebsocketURL("https://localhost:8443/")
	require.NoError(t, err)
	assert.Equal(t, "wss://localhost:8443/ws", u)

	u, err = WebsocketURL("http://127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/ws", u)

	_, err = WebsocketURL("ftp://localhost")
	assert.Error(t, err)
}

func TestGRPCTarget(t *testing.T) {
	target, err := GRPCTarget("https://localhost:8443/")
	require.NoError(t, err)
	assert.Equal(t, "localhost:8443", target)

	target, err = GRPCTarget("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com:443", target)

	_, err = GRPCTarget("https://")
	assert.Error(t, err)
}

// TestMatrixAgainstFixture runs every surface against a real fixture process.
// Before Install the default half must fail; after it every surface passes.
func TestMatrixAgainstFixture(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns the fixture server")
	}
	base, certFile := startFixture(t)
	ctx := context.Background()

	before := Run(ctx, base, Surfaces(), 4)
	for i := 0; i < len(before); i += 2 {
		assert.NoError(t, before[i].Err(), "explicit half before install")
	}
	get, err := Lookup("get")
	require.NoError(t, err)
	unpatched := Run(ctx, base, get, 1)
	require.Error(t, unpatched[1].Err())
	assert.True(t, client.IsTrustError(unpatched[1].CallErr))

	require.NoError(t, systemcerts.Install(systemcerts.WithExtraCAFile(certFile)))
	t.Cleanup(systemcerts.Uninstall)

	after := Run(ctx, base, Surfaces(), 4)
	for _, r := range after {
		assert.NoError(t, r.Err(), "%s/%s", r.Surface, r.Phase)
	}
	assert.NoError(t, Failures(after))

	// Concrete scenario: the plain verb function returns the greeting.
	resp, err := client.Get(ctx, base)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	var msg struct{ Message string }
	require.NoError(t, resp.JSON(&msg))
	assert.Equal(t, Greeting, msg.Message)

	_, err = client.Get(ctx, base, client.WithVerify(client.VerifyBundled()))
	assert.True(t, client.IsTrustError(err))
}
