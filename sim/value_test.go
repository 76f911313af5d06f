package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Value", func() {
	It("round-trips every primitive constructor through its typed accessor", func() {
		b, ok := BoolValue(true).Bool()
		Expect(ok).To(BeTrue())
		Expect(b).To(BeTrue())

		n, ok := IntValue(5).Int()
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(5)))

		f, ok := FloatValue(1.5).Float()
		Expect(ok).To(BeTrue())
		Expect(f).To(Equal(1.5))

		str, ok := StringValue("hi").String()
		Expect(ok).To(BeTrue())
		Expect(str).To(Equal("hi"))
	})

	It("reports false from an accessor whose type does not match the tag", func() {
		_, ok := IntValue(1).Bool()
		Expect(ok).To(BeFalse())
	})

	It("fixes fingerprint by declared opaque type tag, not just TypeOpaque", func() {
		a := OpaqueValue("packet", []byte{1, 2})
		b := OpaqueValue("frame", []byte{1, 2})

		Expect(a.fingerprint()).NotTo(Equal(b.fingerprint()))
		Expect(a.fingerprint()).To(Equal(OpaqueValue("packet", []byte{9}).fingerprint()))
	})

	It("copies opaque byte slices defensively on construction", func() {
		data := []byte{1, 2, 3}
		v := OpaqueValue("x", data)
		data[0] = 99

		got, _, _ := v.Bytes()
		Expect(got[0]).To(Equal(byte(1)))
	})

	It("describes every variant distinctly", func() {
		Expect(BoolValue(true).Describe()).To(Equal("bool(true)"))
		Expect(IntValue(3).Describe()).To(Equal("int(3)"))
		Expect(StringValue("x").Describe()).To(Equal(`string("x")`))
		Expect(Value{}.Describe()).To(Equal("unset"))
	})
})
