package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/elnosh/nutgate/crypto"
	"github.com/elnosh/nutgate/lightning"
)

func testServer(t *testing.T, gw *Gateway) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := SetupServer(Config{ListenAddr: "127.0.0.1:0"}, gw, logger)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return httpServer
}

func TestMintsEndpoint(t *testing.T) {
	client := &fakeMintClient{mints: map[string]*fakeMint{}}
	gw := testGateway(t, client, &lightning.FakeBackend{}, []string{testMintURL, testMintURL2})
	httpServer := testServer(t, gw)

	resp, err := http.Get(httpServer.URL + "/mints")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200 but got %v instead", resp.StatusCode)
	}

	var mints []string
	if err := json.NewDecoder(resp.Body).Decode(&mints); err != nil {
		t.Fatal(err)
	}
	expected := []string{testMintURL, testMintURL2}
	if !reflect.DeepEqual(mints, expected) {
		t.Errorf("expected '%v' but got '%v' instead", expected, mints)
	}
}

func TestPaymentEndpoint(t *testing.T) {
	mint := &fakeMint{keyset: crypto.GenerateKeyset("mintseed", "0/0/0"), feeReserve: 10}
	client := &fakeMintClient{mints: map[string]*fakeMint{testMintURL: mint}}
	gw := testGateway(t, client, &lightning.FakeBackend{}, []string{testMintURL})
	httpServer := testServer(t, gw)

	invoice, _, _, err := lightning.CreateFakeInvoice(1000)
	if err != nil {
		t.Fatal(err)
	}
	token := testToken(t, testMintURL, mint.keyset.Id, 2048)

	payload, _ := json.Marshal(PaymentRequest{
		Method:  "bolt11",
		Request: invoice,
		Tokens:  []string{token},
	})
	resp, err := http.Post(httpServer.URL+"/payment", "application/json", bytes.NewBuffer(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 but got %v instead", resp.StatusCode)
	}

	var result PaymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.PaymentProof != lightning.FakePreimage {
		t.Errorf("expected preimage '%v' but got '%v' instead", lightning.FakePreimage, result.PaymentProof)
	}
	if len(result.Change) == 0 {
		t.Error("expected change in response")
	}
}

func TestPaymentEndpointErrors(t *testing.T) {
	mint := &fakeMint{keyset: crypto.GenerateKeyset("mintseed", "0/0/0"), feeReserve: 10}
	client := &fakeMintClient{mints: map[string]*fakeMint{testMintURL: mint}}
	gw := testGateway(t, client, &lightning.FakeBackend{}, []string{testMintURL})
	httpServer := testServer(t, gw)

	invoice, _, _, err := lightning.CreateFakeInvoice(1000)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedCode   ErrCode
	}{
		{
			name:           "malformed body",
			body:           "not json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   InvalidPaymentRequestErrCode,
		},
		{
			name: "insufficient token amount",
			body: func() string {
				token := testToken(t, testMintURL, mint.keyset.Id, 512)
				payload, _ := json.Marshal(PaymentRequest{Method: "bolt11", Request: invoice, Tokens: []string{token}})
				return string(payload)
			}(),
			expectedStatus: http.StatusPaymentRequired,
			expectedCode:   NoViableMintErrCode,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp, err := http.Post(httpServer.URL+"/payment", "application/json", bytes.NewBufferString(test.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != test.expectedStatus {
				t.Errorf("expected status %v but got %v instead", test.expectedStatus, resp.StatusCode)
			}

			var gatewayErr Error
			if err := json.NewDecoder(resp.Body).Decode(&gatewayErr); err != nil {
				t.Fatal(err)
			}
			if gatewayErr.Code != test.expectedCode {
				t.Errorf("expected error code '%v' but got '%v' instead", test.expectedCode, gatewayErr.Code)
			}
		})
	}
}
