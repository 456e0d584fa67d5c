package domain

type InventoryItem struct {
	ProductID         int64 `json:"productId" db:"product_id"`
	AvailableQuantity int   `json:"availableQuantity" db:"available_quantity"`
	ReservedQuantity  int   `json:"reservedQuantity" db:"reserved_quantity"`
}

type ReservationLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type ReservationRequest struct {
	Items []ReservationLine `json:"items"`
}

type ReservationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Degraded is set when the result was produced locally because the
	// inventory service could not be reached. It never crosses the wire.
	Degraded bool `json:"-"`
}

func Reserved() ReservationResult {
	return ReservationResult{Success: true, Message: "Reserved"}
}

func Released() ReservationResult {
	return ReservationResult{Success: true, Message: "Released"}
}

func Rejected(message string) ReservationResult {
	return ReservationResult{Success: false, Message: message}
}

// ProductSnapshot is the slice of a catalog product inventory cares about.
type ProductSnapshot struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
