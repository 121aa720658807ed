package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type GatewayServer struct {
	httpServer *http.Server
	gateway    *Gateway
	logger     *slog.Logger
}

func SetupServer(config Config, gateway *Gateway, logger *slog.Logger) *GatewayServer {
	server := &GatewayServer{gateway: gateway, logger: logger}
	server.setupHttpServer(config.ListenAddr)
	return server
}

func (gs *GatewayServer) Start() error {
	gs.logger.Info("gateway server listening on: " + gs.httpServer.Addr)
	return gs.httpServer.ListenAndServe()
}

func (gs *GatewayServer) Shutdown(ctx context.Context) error {
	if err := gs.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return gs.gateway.Shutdown()
}

func (gs *GatewayServer) setupHttpServer(addr string) {
	r := mux.NewRouter()

	r.HandleFunc("/mints", gs.listMints).Methods(http.MethodGet)
	r.HandleFunc("/payment", gs.makePayment).Methods(http.MethodPost)

	gs.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

// Handler returns the server's http handler.
func (gs *GatewayServer) Handler() http.Handler {
	return gs.httpServer.Handler
}

func (gs *GatewayServer) listMints(rw http.ResponseWriter, req *http.Request) {
	gs.writeResponse(rw, req, gs.gateway.ListMints())
}

func (gs *GatewayServer) makePayment(rw http.ResponseWriter, req *http.Request) {
	var paymentRequest PaymentRequest
	if err := json.NewDecoder(req.Body).Decode(&paymentRequest); err != nil {
		gs.writeErr(rw, req, buildError(InvalidPaymentRequestErrCode, "invalid payment request",
			"unable to decode request body"))
		return
	}

	result, gatewayErr := gs.gateway.Pay(req.Context(), paymentRequest)
	if gatewayErr != nil {
		gs.writeErr(rw, req, gatewayErr)
		return
	}

	gs.writeResponse(rw, req, result)
}

func (gs *GatewayServer) writeResponse(rw http.ResponseWriter, req *http.Request, response any) {
	jsonRes, err := json.Marshal(response)
	if err != nil {
		gs.writeErr(rw, req, InternalErr)
		return
	}

	gs.logger.Info("returning response", slog.Group("request",
		slog.String("method", req.Method), slog.String("url", req.URL.String())))
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	rw.Write(jsonRes)
}

func (gs *GatewayServer) writeErr(rw http.ResponseWriter, req *http.Request, gatewayErr *Error) {
	gs.logger.Error(gatewayErr.Error(), slog.Group("request",
		slog.String("method", req.Method), slog.String("url", req.URL.String())),
		slog.Int("code", int(gatewayErr.Code)))

	errRes, err := json.Marshal(gatewayErr)
	if err != nil {
		http.Error(rw, "unable to process payment request", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(gatewayErr.HTTPStatus())
	rw.Write(errRes)
}
