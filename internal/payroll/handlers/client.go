package handlers

import (
	"context"
	"encoding/json"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls payroll.v1.PayrollService with the request and response
// types of this package.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req encoded as a Struct and decodes the reply into resp.
func (c *Client) Call(ctx context.Context, method string, req, resp interface{}, opts ...grpc.CallOption) error {
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+auth.ServiceName+"/"+method, in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, resp)
}
