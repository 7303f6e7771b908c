package core

import (
	"github.com/google/uuid"

	"pkt.systems/idemy/schema"
)

func newBufferID() schema.BufferID {
	return schema.BufferID(uuid.NewString())
}

func newCommandID() schema.CommandID {
	return schema.CommandID(uuid.NewString())
}
