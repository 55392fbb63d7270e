package httpx

type PartyDTO struct {
	LeadName  string `json:"leadName"`
	Email     string `json:"email"`
	Travelers int    `json:"travelers"`
}

type ServiceRequestDTO struct {
	Kind     string   `json:"kind"`
	OfferRef string   `json:"offerRef"`
	Party    PartyDTO `json:"party"`
}

type CustomerDTO struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type SubmitRequest struct {
	IdempotencyKey string              `json:"idempotencyKey"`
	Services       []ServiceRequestDTO `json:"services"`
	Customer       CustomerDTO         `json:"customer"`
	PaymentRef     string              `json:"paymentRef"`
}

type LegResponse struct {
	Kind             string  `json:"kind"`
	BookingID        string  `json:"bookingId,omitempty"`
	ConfirmationCode string  `json:"confirmationCode,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	LegStatus        string  `json:"legStatus"`
	FailureReason    string  `json:"failureReason,omitempty"`
}

type OrchestrationResponse struct {
	OrchestrationID string        `json:"orchestrationId"`
	UserID          string        `json:"userId"`
	Status          string        `json:"status"`
	Legs            []LegResponse `json:"legs"`
	CreatedAt       string        `json:"createdAt"`
	CompletedAt     string        `json:"completedAt,omitempty"`
}

type CancelRequest struct {
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason"`

	// RefundPolicy selects a named fee table ("standard", "flexible");
	// empty applies the default.
	RefundPolicy string `json:"refundPolicy,omitempty"`
}

type CancelResponse struct {
	RefundID        string  `json:"refundId"`
	CancellationFee float64 `json:"cancellationFee"`
	RefundAmount    float64 `json:"refundAmount"`
	NeedsReview     bool    `json:"needsReview,omitempty"`
}

type ModifyRequest struct {
	OrchestrationID string            `json:"orchestrationId"`
	LegIndex        int               `json:"legIndex"`
	Changes         map[string]string `json:"changes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
