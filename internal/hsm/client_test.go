package hsm

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, 5*time.Second)
}

func TestRequestOtpSuccess(t *testing.T) {
	var gotPath string
	var gotBody []byte
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`<response><status>SUCCESS</status><message>OTP sent to registered mobile</message></response>`))
	})

	result, err := client.RequestOtp(context.Background(), "PMC-EE_SIGN-abc", "key-ravi")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "OTP sent to registered mobile", result.Message)

	assert.Equal(t, "/hsm/otp", gotPath)
	var req otpRequest
	require.NoError(t, xml.Unmarshal(gotBody, &req))
	assert.Equal(t, "PMC-EE_SIGN-abc", req.TxnID)
	assert.Equal(t, "key-ravi", req.KeyLabel)
}

func TestRequestOtpFailureMarker(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ERROR: key label not enrolled"))
	})

	result, err := client.RequestOtp(context.Background(), "txn", "key")
	assert.ErrorIs(t, err, apperrors.ErrGatewayError)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestSignSuccessDecodesPayload(t *testing.T) {
	signed := []byte("%PDF-1.7 signed")
	var gotBody []byte
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`<response><status>SUCCESS</status><message>OK</message><signedData>` +
			base64.StdEncoding.EncodeToString(signed) + `</signedData></response>`))
	})

	result, err := client.Sign(context.Background(), "txn", "key", []byte("document"), "123456",
		Coordinates{Page: 1, X: 420, Y: 640, Width: 140, Height: 60})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, signed, result.SignedBytes)

	var req signRequest
	require.NoError(t, xml.Unmarshal(gotBody, &req))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("document")), req.Document)
	assert.Equal(t, "123456", req.Otp)
	assert.Equal(t, 420, req.X)
}

func TestSignOtpVerificationFailed(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><status>FAILED</status><message>OTP verification failed</message></response>`))
	})

	result, err := client.Sign(context.Background(), "txn", "key", []byte("document"), "000000", Coordinates{})
	assert.ErrorIs(t, err, apperrors.ErrSigningFailed)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestSignFailureMarkerInsideSuccessBody(t *testing.T) {
	// Some provider errors arrive with a nominally successful envelope.
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><status>SUCCESS</status><message>ERROR: HSM session expired</message></response>`))
	})

	_, err := client.Sign(context.Background(), "txn", "key", []byte("document"), "123456", Coordinates{})
	assert.ErrorIs(t, err, apperrors.ErrSigningFailed)
}

func TestSignMissingPayload(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<response><status>SUCCESS</status><message>OK</message></response>`))
	})

	_, err := client.Sign(context.Background(), "txn", "key", []byte("document"), "123456", Coordinates{})
	assert.ErrorIs(t, err, apperrors.ErrSigningFailed)
}

func TestGatewayHTTPError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := client.RequestOtp(context.Background(), "txn", "key")
	assert.ErrorIs(t, err, apperrors.ErrGatewayError)
}

func TestClientUnreachableGateway(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)

	_, err := client.RequestOtp(context.Background(), "txn", "key")
	assert.ErrorIs(t, err, apperrors.ErrGatewayError)
}
