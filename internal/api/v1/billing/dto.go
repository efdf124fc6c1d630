package billing

// CheckoutRequest selects the subscription price to buy.
type CheckoutRequest struct {
	Price string `json:"price" binding:"required,oneof=monthly yearly"`
}

// CheckoutResponse carries the hosted checkout URL to redirect the user to.
type CheckoutResponse struct {
	URL string `json:"url"`
}
