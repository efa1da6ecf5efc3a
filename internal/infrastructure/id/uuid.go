package id

import "github.com/google/uuid"

// UUIDGenerator issues random v4 ids for orders, refunds, queue entries and transaction logs.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}
