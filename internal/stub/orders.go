package stub

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minishop-go/minishop/pkg/api"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxReceiptSize+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		detail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	uid, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil || uid <= 0 {
		detail(w, http.StatusBadRequest, "Invalid user_id")
		return
	}
	name := r.FormValue("name")
	phone := r.FormValue("phone")
	address := r.FormValue("address")
	if name == "" || phone == "" || address == "" {
		detail(w, http.StatusBadRequest, "Name, phone and address are required")
		return
	}

	file, header, err := r.FormFile("payment_receipt")
	if err != nil {
		detail(w, http.StatusBadRequest, "Payment receipt is required")
		return
	}
	defer file.Close()
	receipt, err := s.receipts.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		if err == ErrReceiptTooLarge {
			detail(w, http.StatusRequestEntityTooLarge, "Receipt too large")
			return
		}
		detail(w, http.StatusInternalServerError, "Could not store receipt")
		return
	}
	s.log.Debug("receipt stored", "id", receipt.ID, "size", receipt.Size)

	s.mu.Lock()
	cart := s.cartFor(uid)
	if len(cart.Items) == 0 {
		s.mu.Unlock()
		detail(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	now := s.now().UTC()
	order := &api.Order{
		ID:              uuid.NewString(),
		UserID:          uid,
		CustomerName:    name,
		CustomerPhone:   phone,
		DeliveryAddress: address,
		Comment:         r.FormValue("comment"),
		Status:          api.OrderNew,
		Items:           append([]api.CartItem(nil), cart.Items...),
		TotalAmount:     cart.TotalAmount,
		CanEditAddress:  true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.orders = append(s.orders, order)
	cart.Items = []api.CartItem{}
	retotal(cart)
	out := *order
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleLastOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	var last *api.Order
	for _, o := range s.sortOrders() {
		if o.UserID == uid {
			last = o
			break
		}
	}
	var out *api.Order
	if last != nil {
		cp := *last
		out = &cp
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.UpdateAddressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	order := s.findOrder(id)
	if order == nil || order.UserID != req.UserID {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Order not found")
		return
	}
	if order.Status.Final() {
		s.mu.Unlock()
		detail(w, http.StatusBadRequest, "Address can no longer be changed")
		return
	}
	order.DeliveryAddress = req.Address
	order.UpdatedAt = s.now().UTC()
	out := *order
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := api.OrderStatus(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			detail(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	s.mu.Lock()
	out := []api.Order{}
	for _, o := range s.sortOrders() {
		if filter != "" && o.Status != filter {
			continue
		}
		out = append(out, *o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	order := s.findOrder(id)
	if order == nil {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Order not found")
		return
	}
	out := *order
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.UpdateOrderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !validStatus(req.Status) {
		detail(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	s.mu.Lock()
	order := s.findOrder(id)
	if order == nil {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Order not found")
		return
	}
	order.Status = req.Status
	order.CanEditAddress = !req.Status.Final()
	order.UpdatedAt = s.now().UTC()
	out := *order
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req api.BroadcastRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || req.Message == "" {
		detail(w, http.StatusBadRequest, "Title and message are required")
		return
	}

	s.mu.Lock()
	total := s.knownUsers()
	s.mu.Unlock()
	s.log.Info("broadcast", "title", req.Title, "segment", req.Segment, "recipients", total)

	writeJSON(w, http.StatusOK, api.BroadcastResult{
		Success:    true,
		SentCount:  total,
		TotalCount: total,
	})
}

// findOrder looks an order up by id. Called with s.mu held.
func (s *Server) findOrder(id string) *api.Order {
	for _, o := range s.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func validStatus(st api.OrderStatus) bool {
	switch st {
	case api.OrderNew, api.OrderProcessing, api.OrderAccepted, api.OrderShipped, api.OrderDone, api.OrderCanceled:
		return true
	}
	return false
}
