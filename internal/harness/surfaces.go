package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/arun0009/systemcerts/pkg/client"
)

// Reply is what a surface observed on a completed call.
type Reply struct {
	StatusCode int
	OK         bool
	Body       []byte
}

// Surface is one way of reaching the server through the client library.
// Call receives client.VerifyBundled() for the explicit half and the zero
// Verify for the default half.
type Surface struct {
	Name string
	// CheckBody asks Run to compare the body with the fixture greeting.
	CheckBody bool
	Call      func(ctx context.Context, baseURL string, v client.Verify) (Reply, error)
}

func verifyOpts(v client.Verify) []client.Option {
	if !v.IsSet() {
		return nil
	}
	return []client.Option{client.WithVerify(v)}
}

func fromResponse(resp *client.Response) Reply {
	return Reply{StatusCode: resp.StatusCode, OK: resp.IsSuccess(), Body: resp.Bytes()}
}

type verbFunc func(context.Context, string, ...client.Option) (*client.Response, error)

func verbSurface(name string, fn verbFunc, checkBody bool) Surface {
	return Surface{
		Name:      name,
		CheckBody: checkBody,
		Call: func(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
			resp, err := fn(ctx, baseURL, verifyOpts(v)...)
			if err != nil {
				return Reply{}, err
			}
			return fromResponse(resp), nil
		},
	}
}

// Surfaces returns the full matrix in a stable order.
func Surfaces() []Surface {
	return []Surface{
		{Name: "create-tls-config", CheckBody: true, Call: callTLSConfig},
		verbSurface("delete", client.Delete, false),
		verbSurface("get", client.Get, true),
		verbSurface("head", client.Head, false),
		verbSurface("options", client.Options, false),
		verbSurface("patch", client.Patch, false),
		verbSurface("post", client.Post, false),
		verbSurface("put", client.Put, false),
		{Name: "request", CheckBody: true, Call: callRequest},
		{Name: "stream", CheckBody: true, Call: callStream},
		{Name: "async-client", CheckBody: true, Call: callAsyncClient},
		{Name: "async-transport", CheckBody: true, Call: callAsyncTransport},
		{Name: "client", CheckBody: true, Call: callClient},
		{Name: "transport", CheckBody: true, Call: callTransport},
		{Name: "proxy", CheckBody: true, Call: callProxy},
		{Name: "net/http get", CheckBody: true, Call: callStdlibGet},
		{Name: "net/http client", CheckBody: true, Call: callStdlibClient},
		{Name: "websocket", Call: callWebsocket},
		{Name: "grpc", Call: callGRPC},
	}
}

// Lookup finds surfaces by name. Unknown names are an error.
func Lookup(names ...string) ([]Surface, error) {
	all := Surfaces()
	byName := make(map[string]Surface, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]Surface, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown surface %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func callTLSConfig(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	cfg, err := client.NewTLSConfig(v)
	if err != nil {
		return Reply{}, err
	}
	resp, err := client.Get(ctx, baseURL, client.WithVerify(client.VerifyTLSConfig(cfg)))
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

func callRequest(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	resp, err := client.Request(ctx, http.MethodGet, baseURL, verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

func callStream(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	var reply Reply
	err := client.Stream(ctx, http.MethodGet, baseURL, func(resp *client.Response) error {
		body, err := io.ReadAll(resp.Body())
		if err != nil {
			return err
		}
		reply = Reply{StatusCode: resp.StatusCode, OK: resp.IsSuccess(), Body: body}
		return nil
	}, verifyOpts(v)...)
	return reply, err
}

func callAsyncClient(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	ac, err := client.NewAsyncClient(verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	defer ac.Close()
	resp, err := ac.Get(ctx, baseURL).Await(ctx)
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

func callAsyncTransport(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	t, err := client.NewTransport(verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	defer t.Close()
	ac, err := client.NewAsyncClient(client.WithTransport(t))
	if err != nil {
		return Reply{}, err
	}
	resp, err := ac.Get(ctx, baseURL).Await(ctx)
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

func callClient(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	c, err := client.NewClient(verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	defer c.Close()
	resp, err := c.Get(ctx, baseURL)
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

func callTransport(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	t, err := client.NewTransport(verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	defer t.Close()
	c, err := client.NewClient(client.WithTransport(t))
	if err != nil {
		return Reply{}, err
	}
	resp, err := c.Get(ctx, baseURL)
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

// callProxy takes the trust context a Proxy derives and sends a direct
// request with it.
func callProxy(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	var popts []client.ProxyOption
	if v.IsSet() {
		cfg, err := client.NewTLSConfig(v)
		if err != nil {
			return Reply{}, err
		}
		popts = append(popts, client.WithProxyTLSConfig(cfg))
	}
	p, err := client.NewProxy(baseURL, popts...)
	if err != nil {
		return Reply{}, err
	}
	cfg, err := p.TLSConfig()
	if err != nil {
		return Reply{}, err
	}
	if cfg == nil {
		return Reply{}, fmt.Errorf("proxy has no tls config")
	}
	resp, err := client.Get(ctx, baseURL, client.WithVerify(client.VerifyTLSConfig(cfg)))
	if err != nil {
		return Reply{}, err
	}
	return fromResponse(resp), nil
}

// stdlibClient is http.DefaultClient for the default half and a client
// pinned to v otherwise.
func stdlibClient(v client.Verify, fresh bool) (*http.Client, error) {
	if !v.IsSet() {
		if fresh {
			return &http.Client{}, nil
		}
		return http.DefaultClient, nil
	}
	cfg, err := client.NewTLSConfig(v)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: &http.Transport{TLSClientConfig: cfg}}, nil
}

func stdlibGet(ctx context.Context, hc *http.Client, baseURL string) (Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return Reply{}, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, err
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	return Reply{StatusCode: resp.StatusCode, OK: ok, Body: body}, nil
}

func callStdlibGet(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	hc, err := stdlibClient(v, false)
	if err != nil {
		return Reply{}, err
	}
	return stdlibGet(ctx, hc, baseURL)
}

func callStdlibClient(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	hc, err := stdlibClient(v, true)
	if err != nil {
		return Reply{}, err
	}
	if t, ok := hc.Transport.(*http.Transport); ok {
		defer t.CloseIdleConnections()
	}
	return stdlibGet(ctx, hc, baseURL)
}

// WebsocketURL maps an https base URL to the fixture echo endpoint.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// GRPCTarget returns host:port of baseURL, defaulting the port to 443.
func GRPCTarget(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func callWebsocket(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	wsURL, err := WebsocketURL(baseURL)
	if err != nil {
		return Reply{}, err
	}
	conn, err := client.DialWebsocket(ctx, wsURL, verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	ping := []byte("ping")
	if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
		return Reply{}, err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return Reply{}, err
	}
	return Reply{StatusCode: http.StatusSwitchingProtocols, OK: bytes.Equal(msg, ping), Body: msg}, nil
}

func callGRPC(ctx context.Context, baseURL string, v client.Verify) (Reply, error) {
	target, err := GRPCTarget(baseURL)
	if err != nil {
		return Reply{}, err
	}
	status, err := client.CheckHealth(ctx, target, "", verifyOpts(v)...)
	if err != nil {
		return Reply{}, err
	}
	return Reply{StatusCode: int(status), OK: status == healthpb.HealthCheckResponse_SERVING}, nil
}
