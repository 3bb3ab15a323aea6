package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"portalcore/pkg/domain"
)

// NewMockForTests returns a *Store backed by an in-memory fake HTTP
// transport. Only the object get/put subset used by the document slot is
// implemented.
func NewMockForTests(engine *domain.RulesEngine, seed domain.Document) (*Store, error) {
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return newWithClient(context.Background(), client, "mock-bucket", "", engine, seed)
}

// mockRoundTripper emulates the GetObject/PutObject wire behavior against an
// in-memory object map.
type mockRoundTripper struct {
	state map[string][]byte
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	switch req.Method {
	case http.MethodGet:
		body, ok := m.state[key]
		if !ok {
			return xmlError(req, http.StatusNotFound, "NoSuchKey", "The specified key does not exist."), nil
		}
		return &http.Response{
			StatusCode:    http.StatusOK,
			Body:          io.NopCloser(bytes.NewReader(body)),
			ContentLength: int64(len(body)),
			Header:        http.Header{"Content-Type": []string{"application/json"}},
			Request:       req,
		}, nil
	case http.MethodPut:
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		m.state[key] = data
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     http.Header{"ETag": []string{`"mock"`}},
			Request:    req,
		}, nil
	default:
		return xmlError(req, http.StatusMethodNotAllowed, "MethodNotAllowed", "unsupported in mock"), nil
	}
}

func xmlError(req *http.Request, status int, code, message string) *http.Response {
	body := fmt.Sprintf("<?xml version=\"1.0\"?><Error><Code>%s</Code><Message>%s</Message></Error>", code, message)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/xml"}},
		Request:    req,
	}
}
