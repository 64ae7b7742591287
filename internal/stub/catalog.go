package stub

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minishop-go/minishop/pkg/api"
)

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req api.CategoryCreate
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		detail(w, http.StatusBadRequest, "Category name is required")
		return
	}

	s.mu.Lock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			s.mu.Unlock()
			detail(w, http.StatusBadRequest, "Category already exists")
			return
		}
	}
	cat := api.Category{ID: uuid.NewString(), Name: name}
	s.categories = append(s.categories, cat)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.CategoryUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		detail(w, http.StatusBadRequest, "Category name is required")
		return
	}

	s.mu.Lock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories[i].Name = name
			out := s.categories[i]
			s.mu.Unlock()
			writeJSON(w, http.StatusOK, out)
			return
		}
	}
	s.mu.Unlock()
	detail(w, http.StatusNotFound, "Category not found")
}

// handleDeleteCategory removes the category and every product in it.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	found := false
	kept := s.categories[:0]
	for _, c := range s.categories {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		s.mu.Unlock()
		detail(w, http.StatusNotFound, "Category not found")
		return
	}
	s.categories = kept
	prods := s.products[:0]
	for _, p := range s.products {
		if p.CategoryID != id {
			prods = append(prods, p)
		}
	}
	s.products = prods
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req api.ProductCreate
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		detail(w, http.StatusBadRequest, "Product name is required")
		return
	}
	if req.Price < 0 {
		detail(w, http.StatusBadRequest, "Price must not be negative")
		return
	}

	s.mu.Lock()
	if !s.categoryExists(req.CategoryID) {
		s.mu.Unlock()
		detail(w, http.StatusBadRequest, "Category not found")
		return
	}
	p := api.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Images:      req.Images,
		CategoryID:  req.CategoryID,
		Available:   req.Available,
		Variants:    req.Variants,
	}
	mirrorImage(&p)
	s.products = append(s.products, p)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req api.ProductUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID != id {
			continue
		}
		p := &s.products[i]
		if req.CategoryID != nil && !s.categoryExists(*req.CategoryID) {
			s.mu.Unlock()
			detail(w, http.StatusBadRequest, "Category not found")
			return
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Price != nil {
			p.Price = *req.Price
		}
		if req.Image != nil {
			p.Image = *req.Image
		}
		if req.Images != nil {
			p.Images = req.Images
		}
		if req.CategoryID != nil {
			p.CategoryID = *req.CategoryID
		}
		if req.Available != nil {
			p.Available = *req.Available
		}
		if req.Variants != nil {
			p.Variants = req.Variants
		}
		mirrorImage(p)
		out := *p
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
		return
	}
	s.mu.Unlock()
	detail(w, http.StatusNotFound, "Product not found")
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	found := false
	kept := s.products[:0]
	for _, p := range s.products {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	s.products = kept
	s.mu.Unlock()
	if !found {
		detail(w, http.StatusNotFound, "Product not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// categoryExists reports whether a category id is known.
// Called with s.mu held.
func (s *Server) categoryExists(id string) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// mirrorImage keeps the legacy single-image field in sync with the gallery.
func mirrorImage(p *api.Product) {
	if len(p.Images) > 0 {
		p.Image = p.Images[0]
	} else if p.Image != "" {
		p.Images = []string{p.Image}
	}
}
