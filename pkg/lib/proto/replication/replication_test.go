package replication

import (
	"bufio"
	"bytes"
	"testing"
)

func TestOpenRoundTrip(t *testing.T) {
	in := &Open{
		DiscoveryKey: bytes.Repeat([]byte{0x11}, 32),
		Capability:   bytes.Repeat([]byte{0x22}, 32),
	}

	data, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	out := &Open{}
	if err := out.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !bytes.Equal(out.DiscoveryKey, in.DiscoveryKey) {
		t.Error("DiscoveryKey 不一致")
	}
	if !bytes.Equal(out.Capability, in.Capability) {
		t.Error("Capability 不一致")
	}
}

func TestDataRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		index uint64
		block []byte
	}{
		{"index zero", 0, []byte("hello")},
		{"large index", 1 << 40, []byte("world")},
		{"empty block", 7, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &Data{Index: tt.index, Block: tt.block}
			raw, err := in.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			out := &Data{}
			if err := out.Unmarshal(raw); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if out.Index != tt.index {
				t.Errorf("Index = %d, want %d", out.Index, tt.index)
			}
			if !bytes.Equal(out.Block, tt.block) {
				t.Errorf("Block = %q, want %q", out.Block, tt.block)
			}
		})
	}
}

func TestUnmarshalUnknownFieldsIgnored(t *testing.T) {
	// 构造含未知字段 3（length-delimited）的 Open 消息
	base := &Open{DiscoveryKey: bytes.Repeat([]byte{0x01}, 32)}
	raw, _ := base.Marshal()
	raw = append(raw, 0x1a, 0x03, 0xaa, 0xbb, 0xcc) // field 3

	out := &Open{}
	if err := out.Unmarshal(raw); err != nil {
		t.Fatalf("未知字段应被忽略, error = %v", err)
	}
	if !bytes.Equal(out.DiscoveryKey, base.DiscoveryKey) {
		t.Error("已知字段解析失败")
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	in := &Open{
		DiscoveryKey: bytes.Repeat([]byte{0x11}, 32),
		Capability:   bytes.Repeat([]byte{0x22}, 32),
	}
	raw, _ := in.Marshal()

	// 截断声明长度之内的数据必须报错，不允许越界读取
	out := &Open{}
	if err := out.Unmarshal(raw[:10]); err == nil {
		t.Error("截断数据应返回错误")
	}
}

func TestUnmarshalLengthOverflow(t *testing.T) {
	// field 1 声明长度 2^63，int 转换会变负数，必须按 uint64 比较拒绝
	raw := []byte{0x0a, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}

	if err := (&Open{}).Unmarshal(raw); err == nil {
		t.Error("溢出长度应返回错误")
	}

	raw[0] = 0x12 // field 2 走 Data 的 length-delimited 分支
	if err := (&Data{}).Unmarshal(raw); err == nil {
		t.Error("溢出长度应返回错误")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	msgs := []struct {
		typ MessageType
		msg Message
	}{
		{MessageOpen, &Open{DiscoveryKey: bytes.Repeat([]byte{0x01}, 32), Capability: bytes.Repeat([]byte{0x02}, 32)}},
		{MessageInfo, &Info{Length: 42}},
		{MessageRequest, &Request{Index: 0}},
		{MessageData, &Data{Index: 3, Block: []byte("block three")}},
		{MessageAccept, &Accept{Capability: bytes.Repeat([]byte{0x03}, 32)}},
	}

	for _, m := range msgs {
		if err := WriteFrame(&buf, m.typ, m.msg); err != nil {
			t.Fatalf("WriteFrame(%s) error = %v", m.typ, err)
		}
	}

	r := bufio.NewReader(&buf)
	for _, m := range msgs {
		typ, body, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		if typ != m.typ {
			t.Errorf("type = %s, want %s", typ, m.typ)
		}

		switch typ {
		case MessageInfo:
			info := &Info{}
			if err := info.Unmarshal(body); err != nil {
				t.Fatal(err)
			}
			if info.Length != 42 {
				t.Errorf("Info.Length = %d, want 42", info.Length)
			}
		case MessageRequest:
			req := &Request{}
			if err := req.Unmarshal(body); err != nil {
				t.Fatal(err)
			}
			if req.Index != 0 {
				t.Errorf("Request.Index = %d, want 0", req.Index)
			}
		case MessageData:
			d := &Data{}
			if err := d.Unmarshal(body); err != nil {
				t.Fatal(err)
			}
			if string(d.Block) != "block three" {
				t.Errorf("Data.Block = %q", d.Block)
			}
		}
	}
}

func TestFrameSizeLimit(t *testing.T) {
	var buf bytes.Buffer
	big := &Data{Index: 1, Block: make([]byte, MaxFrameSize)}
	if err := WriteFrame(&buf, MessageData, big); err != ErrFrameTooLarge {
		t.Errorf("超限帧 WriteFrame error = %v, want ErrFrameTooLarge", err)
	}

	// 伪造超限长度前缀
	buf.Reset()
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff, 0x7f}) // ~1<<34
	if _, _, err := ReadFrame(bufio.NewReader(&buf)); err == nil {
		t.Error("超限帧 ReadFrame 应返回错误")
	}
}
