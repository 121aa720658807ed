package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	LND_HOST          = "LND_REST_HOST"
	LND_CERT_PATH     = "LND_CERT_PATH"
	LND_MACAROON_PATH = "LND_MACAROON_PATH"
)

type LndClient struct {
	host     string
	macaroon string // hex encoded
	client   *http.Client
}

func CreateLndClient() (*LndClient, error) {
	host := os.Getenv(LND_HOST)
	if host == "" {
		return nil, errors.New(LND_HOST + " cannot be empty")
	}
	certPath := os.Getenv(LND_CERT_PATH)
	if certPath == "" {
		return nil, errors.New(LND_CERT_PATH + " cannot be empty")
	}
	macaroonPath := os.Getenv(LND_MACAROON_PATH)
	if macaroonPath == "" {
		return nil, errors.New(LND_MACAROON_PATH + " cannot be empty")
	}

	macaroonBytes, err := os.ReadFile(macaroonPath)
	if err != nil {
		return nil, fmt.Errorf("error reading macaroon: os.ReadFile %v", err)
	}

	cert, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("error reading tls cert: os.ReadFile %v", err)
	}
	certPool := x509.NewCertPool()
	certPool.AppendCertsFromPEM(cert)

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: certPool,
			},
		},
	}

	return &LndClient{
		host:     host,
		macaroon: hex.EncodeToString(macaroonBytes),
		client:   client,
	}, nil
}

func (lnd *LndClient) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Grpc-Metadata-macaroon", lnd.macaroon)

	return lnd.client.Do(req)
}

func (lnd *LndClient) ConnectionStatus() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := lnd.do(ctx, http.MethodGet, lnd.host+"/v1/getinfo", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("could not get status from lnd: %v", resp.Status)
	}
	return nil
}

func (lnd *LndClient) SendPayment(ctx context.Context, request string, amount uint64) (PaymentStatus, error) {
	body := map[string]any{"payment_request": request}

	resp, err := lnd.do(ctx, http.MethodPost, lnd.host+"/v1/channels/transactions", body)
	if err != nil {
		// cancelled or timed out request leaves the payment in flight
		return PaymentStatus{PaymentStatus: Pending}, err
	}
	defer resp.Body.Close()

	var res struct {
		PaymentError    string `json:"payment_error"`
		PaymentPreimage string `json:"payment_preimage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return PaymentStatus{PaymentStatus: Pending}, fmt.Errorf("error reading response from lnd: %v", err)
	}

	if len(res.PaymentError) > 0 {
		return PaymentStatus{PaymentStatus: Failed, Reason: res.PaymentError}, nil
	}
	if len(res.PaymentPreimage) == 0 {
		return PaymentStatus{PaymentStatus: Pending}, errors.New("lnd did not return a preimage")
	}

	preimage, err := decodePreimage(res.PaymentPreimage)
	if err != nil {
		return PaymentStatus{PaymentStatus: Pending}, err
	}

	return PaymentStatus{Preimage: preimage, PaymentStatus: Succeeded}, nil
}

func (lnd *LndClient) OutgoingPaymentStatus(ctx context.Context, hash string) (PaymentStatus, error) {
	url := lnd.host + "/v1/payments?include_incomplete=true"

	resp, err := lnd.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PaymentStatus{PaymentStatus: Pending}, err
	}
	defer resp.Body.Close()

	var res struct {
		Payments []struct {
			PaymentHash     string `json:"payment_hash"`
			PaymentPreimage string `json:"payment_preimage"`
			Status          string `json:"status"`
			FailureReason   string `json:"failure_reason"`
		} `json:"payments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return PaymentStatus{PaymentStatus: Pending}, fmt.Errorf("error reading response from lnd: %v", err)
	}

	for _, payment := range res.Payments {
		if payment.PaymentHash != hash {
			continue
		}
		switch payment.Status {
		case "SUCCEEDED":
			return PaymentStatus{Preimage: payment.PaymentPreimage, PaymentStatus: Succeeded}, nil
		case "FAILED":
			return PaymentStatus{PaymentStatus: Failed, Reason: payment.FailureReason}, nil
		default:
			return PaymentStatus{PaymentStatus: Pending}, nil
		}
	}

	return PaymentStatus{PaymentStatus: Pending}, errors.New("payment does not exist")
}

// lnd returns preimages base64 encoded on some endpoints
func decodePreimage(preimage string) (string, error) {
	if _, err := hex.DecodeString(preimage); err == nil {
		return preimage, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(preimage)
	if err != nil {
		return "", fmt.Errorf("invalid preimage in response: %v", err)
	}
	return hex.EncodeToString(decoded), nil
}
