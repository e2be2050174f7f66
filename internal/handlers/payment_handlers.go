package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"inkgate/internal/access"
	"inkgate/internal/engine/actors"
	"inkgate/internal/middleware"
	"inkgate/internal/utils"
)

// PaymentCompleteRequest is the callback body posted by the payment page
// after the external provider reports success.
type PaymentCompleteRequest struct {
	PostID   string `json:"postId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentCompleteResponse returns the receipt and the now-unlocked post.
type PaymentCompleteResponse struct {
	ReceiptID string          `json:"receiptId"`
	Post      access.PostView `json:"post"`
}

// HandlePaymentComplete finalizes a successful payment: it records the
// receipt and grants the viewer paid access. The provider's verdict is
// trusted; no verification call is made here. Failures surface with a
// retryable code so the payment page can re-submit the same callback.
func (s *Server) HandlePaymentComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.Metrics.IncrementRequests()

		viewerID := middleware.GetViewerIDFromContext(r.Context())
		if viewerID == "" {
			s.writeAppError(w, utils.NewUnauthorizedError("payment completion requires an authenticated viewer"))
			return
		}

		var req PaymentCompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		future := s.Context.RequestFuture(s.Engine.GetPaymentActor(), &actors.RecordPaymentMsg{
			PostID:   req.PostID,
			ViewerID: viewerID,
			Amount:   req.Amount,
			Currency: req.Currency,
		}, s.RequestTimeout)

		result, err := future.Result()
		if err != nil {
			s.writeAppError(w, utils.NewPaymentNotFinalizedError(req.PostID, err))
			return
		}
		if appErr, ok := result.(*utils.AppError); ok {
			s.writeAppError(w, appErr)
			return
		}

		paid := result.(*actors.PaymentResult)
		s.Cache.Invalidate(r.Context())
		if s.Hub != nil {
			notice, merr := json.Marshal(map[string]interface{}{
				"type":      "payment.finalized",
				"receiptId": paid.Receipt.ID,
				"postId":    paid.Post.ID,
			})
			if merr == nil {
				s.Hub.SendDirectMessage(viewerID, notice)
			}
		}

		writeJSON(w, PaymentCompleteResponse{
			ReceiptID: paid.Receipt.ID,
			Post:      access.ViewFor(paid.Post, viewerID),
		})
	}
}

// ReceiptView is the delivery shape of one payment receipt.
type ReceiptView struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandlePaymentReceipts lists the requesting viewer's receipts, newest
// first. The payment page uses this to tell "never paid" apart from "paid
// but the grant was lost" before replaying a completion call.
func (s *Server) HandlePaymentReceipts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.Metrics.IncrementRequests()

		viewerID := middleware.GetViewerIDFromContext(r.Context())
		if viewerID == "" {
			s.writeAppError(w, utils.NewUnauthorizedError("receipts require an authenticated viewer"))
			return
		}

		views := make([]ReceiptView, 0)
		if s.DB != nil {
			receipts, err := s.DB.GetViewerReceipts(r.Context(), viewerID)
			if err != nil {
				if appErr, ok := err.(*utils.AppError); ok {
					s.writeAppError(w, appErr)
				} else {
					s.writeAppError(w, utils.NewAppError(utils.ErrDatabase, "Failed to load receipts", err))
				}
				return
			}
			for _, receipt := range receipts {
				views = append(views, ReceiptView{
					ID:        receipt.ID,
					PostID:    receipt.PostID,
					Amount:    receipt.Amount,
					Currency:  receipt.Currency,
					CreatedAt: receipt.CreatedAt,
				})
			}
		}
		writeJSON(w, views)
	}
}
