package server

import (
	"context"
	"fmt"

	"github.com/funvibe/shadevm/internal/host"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a shadevm.v1.Shader service.
type Client struct {
	conn  *grpc.ClientConn
	sd    *desc.ServiceDescriptor
	owned bool
}

// Dial connects to target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	c, err := NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewClient wraps an existing connection. Close leaves conn open.
func NewClient(conn *grpc.ClientConn) (*Client, error) {
	sd, err := Service()
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, sd: sd}, nil
}

func (c *Client) Close() error {
	if c.owned {
		return c.conn.Close()
	}
	return nil
}

// Loaded describes a cached program.
type Loaded struct {
	ID        string
	Kind      string
	Name      string
	Uses      uint64
	UsesNames []string
}

// Output is one variable returned by Shade. Numbers holds every element's
// components in order: one per float, three per triple, sixteen per matrix.
type Output struct {
	Name    string
	Kind    string
	Varying bool
	Numbers []float64
	Texts   []string
}

// ShadeRequest names a cached program and how to run it.
type ShadeRequest struct {
	ID            string
	Width, Height int
	Params        map[string]host.Value
	Outputs       []string
}

// ShadeResult is the reply to Shade.
type ShadeResult struct {
	Outputs []Output
	Reports []string
}

// Output returns the named output, if present.
func (r ShadeResult) Output(name string) (Output, bool) {
	for _, o := range r.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

func (c *Client) call(ctx context.Context, method string, fill func(*dynamic.Message)) (*dynamic.Message, error) {
	md := c.sd.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("%s has no method %s", ServiceName, method)
	}
	req := dynamic.NewMessage(md.GetInputType())
	fill(req)
	resp := dynamic.NewMessage(md.GetOutputType())
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Load caches bytecode text on the server.
func (c *Client) Load(ctx context.Context, file, text string) (Loaded, error) {
	resp, err := c.call(ctx, "Load", func(m *dynamic.Message) {
		m.SetFieldByName("file", file)
		m.SetFieldByName("bytecode", text)
	})
	if err != nil {
		return Loaded{}, err
	}
	uses, _ := resp.GetFieldByName("uses").(uint64)
	return Loaded{
		ID:        stringField(resp, "id"),
		Kind:      stringField(resp, "kind"),
		Name:      stringField(resp, "name"),
		Uses:      uses,
		UsesNames: stringsField(resp, "uses_names"),
	}, nil
}

// Shade runs a cached program.
func (c *Client) Shade(ctx context.Context, r ShadeRequest) (ShadeResult, error) {
	resp, err := c.call(ctx, "Shade", func(m *dynamic.Message) {
		m.SetFieldByName("id", r.ID)
		m.SetFieldByName("width", int32(r.Width))
		m.SetFieldByName("height", int32(r.Height))
		pd := m.GetMessageDescriptor().FindFieldByName("params").GetMessageType()
		for name, v := range r.Params {
			p := dynamic.NewMessage(pd)
			p.SetFieldByName("name", name)
			val := dynamic.NewMessage(pd.FindFieldByName("value").GetMessageType())
			setValue(val, v)
			p.SetFieldByName("value", val)
			m.AddRepeatedFieldByName("params", p)
		}
		for _, o := range r.Outputs {
			m.AddRepeatedFieldByName("outputs", o)
		}
	})
	if err != nil {
		return ShadeResult{}, err
	}
	var res ShadeResult
	for _, v := range messages(resp, "outputs") {
		res.Outputs = append(res.Outputs, Output{
			Name:    stringField(v, "name"),
			Kind:    stringField(v, "kind"),
			Varying: boolField(v, "varying"),
			Numbers: floatsField(v, "numbers"),
			Texts:   stringsField(v, "texts"),
		})
	}
	res.Reports = stringsField(resp, "reports")
	return res, nil
}

// Disassemble returns a program's canonical text and its offset listing.
func (c *Client) Disassemble(ctx context.Context, id string) (text, listing string, err error) {
	resp, err := c.call(ctx, "Disassemble", func(m *dynamic.Message) {
		m.SetFieldByName("id", id)
	})
	if err != nil {
		return "", "", err
	}
	return stringField(resp, "text"), stringField(resp, "listing"), nil
}
