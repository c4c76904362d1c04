package hsm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"
)

// Client talks to the HSM bridge over HTTP. The provider answers with XML;
// some failure modes come back as bare "ERROR: ..." text instead, so
// parsing tolerates both.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a gateway client. A zero timeout disables the HTTP
// client timeout entirely: the provider legitimately holds sign requests
// open for its whole OTP window, so cancellation is the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type otpRequest struct {
	XMLName  xml.Name `xml:"otpRequest"`
	TxnID    string   `xml:"txnId"`
	KeyLabel string   `xml:"keyLabel"`
}

type signRequest struct {
	XMLName  xml.Name `xml:"signRequest"`
	TxnID    string   `xml:"txnId"`
	KeyLabel string   `xml:"keyLabel"`
	Document string   `xml:"document"` // base64
	Otp      string   `xml:"otp"`
	Page     int      `xml:"page"`
	X        int      `xml:"x"`
	Y        int      `xml:"y"`
	Width    int      `xml:"width"`
	Height   int      `xml:"height"`
}

type gatewayResponse struct {
	XMLName    xml.Name `xml:"response"`
	Status     string   `xml:"status"`
	Message    string   `xml:"message"`
	SignedData string   `xml:"signedData"` // base64, sign responses only
}

func (c *Client) RequestOtp(ctx context.Context, txnID, keyLabel string) (*OtpResult, error) {
	raw, err := c.post(ctx, "/hsm/otp", otpRequest{TxnID: txnID, KeyLabel: keyLabel})
	if err != nil {
		return nil, err
	}

	parsed, ok := parseResponse(raw)
	if !ok || failureMarker(raw) {
		return &OtpResult{Success: false, Message: parsed.Message, RawResponse: raw},
			fmt.Errorf("%w: otp request rejected: %s", apperrors.ErrGatewayError, snippet(raw))
	}

	return &OtpResult{Success: true, Message: parsed.Message, RawResponse: raw}, nil
}

func (c *Client) Sign(ctx context.Context, txnID, keyLabel string, document []byte, otp string, coords Coordinates) (*SignResult, error) {
	req := signRequest{
		TxnID:    txnID,
		KeyLabel: keyLabel,
		Document: base64.StdEncoding.EncodeToString(document),
		Otp:      otp,
		Page:     coords.Page,
		X:        coords.X,
		Y:        coords.Y,
		Width:    coords.Width,
		Height:   coords.Height,
	}

	raw, err := c.post(ctx, "/hsm/sign", req)
	if err != nil {
		return nil, err
	}

	parsed, ok := parseResponse(raw)
	if !ok || failureMarker(raw) {
		return &SignResult{Success: false, Message: parsed.Message, RawResponse: raw},
			fmt.Errorf("%w: %s", apperrors.ErrSigningFailed, snippet(raw))
	}

	signed, decodeErr := base64.StdEncoding.DecodeString(parsed.SignedData)
	if decodeErr != nil || len(signed) == 0 {
		return &SignResult{Success: false, Message: parsed.Message, RawResponse: raw},
			fmt.Errorf("%w: signed payload missing or undecodable", apperrors.ErrSigningFailed)
	}

	return &SignResult{Success: true, SignedBytes: signed, Message: parsed.Message, RawResponse: raw}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (string, error) {
	body, err := xml.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", apperrors.ErrGatewayError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", apperrors.ErrGatewayError, err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrGatewayError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", apperrors.ErrGatewayError, err)
	}

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: gateway returned %d: %s", apperrors.ErrGatewayError, resp.StatusCode, snippet(string(raw)))
	}

	return string(raw), nil
}

// parseResponse decodes the provider XML. ok is false when the body is not
// parseable XML or reports a non-success status.
func parseResponse(raw string) (gatewayResponse, bool) {
	var parsed gatewayResponse
	if err := xml.Unmarshal([]byte(raw), &parsed); err != nil {
		return gatewayResponse{Message: snippet(raw)}, false
	}
	return parsed, strings.EqualFold(parsed.Status, "SUCCESS")
}

// failureMarker scans for the provider's known failure markers, which can
// appear even inside otherwise well-formed bodies.
func failureMarker(raw string) bool {
	upper := strings.ToUpper(raw)
	return strings.Contains(upper, "ERROR:") ||
		strings.Contains(upper, "<STATUS>FAILED</STATUS>") ||
		strings.Contains(upper, "OTP VERIFICATION FAILED")
}

func snippet(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 500 {
		return raw[:500]
	}
	return raw
}
