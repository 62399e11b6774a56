package seats

import "github.com/google/uuid"

type LockSeatsRequest struct {
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1,max=50,dive,required"`
}

type UnlockSeatsRequest struct {
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1,max=50,dive,required"`
}
