package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elnosh/nutgate/cashu"
	"github.com/elnosh/nutgate/cashu/nuts/nut01"
	"github.com/elnosh/nutgate/cashu/nuts/nut02"
	"github.com/elnosh/nutgate/cashu/nuts/nut05"
	"github.com/elnosh/nutgate/cashu/nuts/nut06"
)

// MintClient makes requests against a mint. Each call is atomic at
// the mint boundary: a melt either consumes all inputs or none.
type MintClient interface {
	GetMintInfo(ctx context.Context, mintURL string) (*nut06.MintInfo, error)
	GetKeysets(ctx context.Context, mintURL string) (*nut02.GetKeysetsResponse, error)
	GetActiveKeysets(ctx context.Context, mintURL string) (*nut01.GetKeysResponse, error)
	GetMeltQuote(ctx context.Context, mintURL string, request nut05.PostMeltQuoteBolt11Request) (*nut05.PostMeltQuoteBolt11Response, error)
	Melt(ctx context.Context, mintURL string, request nut05.PostMeltBolt11Request) (*nut05.PostMeltBolt11Response, error)
	MeltChange(ctx context.Context, mintURL string, request nut05.PostMeltChangeRequest) (*nut05.PostMeltChangeResponse, error)
}

type httpMintClient struct {
	client *http.Client
}

func NewMintClient() MintClient {
	return &httpMintClient{client: &http.Client{Timeout: 30 * time.Second}}
}

func (mc *httpMintClient) GetMintInfo(ctx context.Context, mintURL string) (*nut06.MintInfo, error) {
	body, err := mc.get(ctx, mintURL+"/v1/info")
	if err != nil {
		return nil, err
	}

	var mintInfo nut06.MintInfo
	if err := json.Unmarshal(body, &mintInfo); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &mintInfo, nil
}

func (mc *httpMintClient) GetKeysets(ctx context.Context, mintURL string) (*nut02.GetKeysetsResponse, error) {
	body, err := mc.get(ctx, mintURL+"/v1/keysets")
	if err != nil {
		return nil, err
	}

	var keysetsRes nut02.GetKeysetsResponse
	if err := json.Unmarshal(body, &keysetsRes); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &keysetsRes, nil
}

func (mc *httpMintClient) GetActiveKeysets(ctx context.Context, mintURL string) (*nut01.GetKeysResponse, error) {
	body, err := mc.get(ctx, mintURL+"/v1/keys")
	if err != nil {
		return nil, err
	}

	var keysetRes nut01.GetKeysResponse
	if err := json.Unmarshal(body, &keysetRes); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &keysetRes, nil
}

func (mc *httpMintClient) GetMeltQuote(ctx context.Context, mintURL string, request nut05.PostMeltQuoteBolt11Request) (
	*nut05.PostMeltQuoteBolt11Response, error) {

	body, err := mc.post(ctx, mintURL+"/v1/melt/quote/bolt11", request)
	if err != nil {
		return nil, err
	}

	var meltQuoteResponse nut05.PostMeltQuoteBolt11Response
	if err := json.Unmarshal(body, &meltQuoteResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &meltQuoteResponse, nil
}

func (mc *httpMintClient) Melt(ctx context.Context, mintURL string, request nut05.PostMeltBolt11Request) (
	*nut05.PostMeltBolt11Response, error) {

	body, err := mc.post(ctx, mintURL+"/v1/melt/bolt11", request)
	if err != nil {
		return nil, err
	}

	var meltResponse nut05.PostMeltBolt11Response
	if err := json.Unmarshal(body, &meltResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &meltResponse, nil
}

func (mc *httpMintClient) MeltChange(ctx context.Context, mintURL string, request nut05.PostMeltChangeRequest) (
	*nut05.PostMeltChangeResponse, error) {

	body, err := mc.post(ctx, mintURL+"/v1/melt/bolt11/"+request.Quote+"/change", request)
	if err != nil {
		return nil, err
	}

	var changeResponse nut05.PostMeltChangeResponse
	if err := json.Unmarshal(body, &changeResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &changeResponse, nil
}

func (mc *httpMintClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := mc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parse(resp)
}

func (mc *httpMintClient) post(ctx context.Context, url string, reqBody any) ([]byte, error) {
	requestBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := mc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parse(resp)
}

func parse(response *http.Response) ([]byte, error) {
	if response.StatusCode == 400 {
		var errResponse cashu.Error
		err := json.NewDecoder(response.Body).Decode(&errResponse)
		if err != nil {
			return nil, fmt.Errorf("could not decode error response from mint: %v", err)
		}
		return nil, errResponse
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != 200 {
		return nil, fmt.Errorf("%s", body)
	}

	return body, nil
}
