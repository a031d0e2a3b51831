package typedbytes_test

import (
	"fmt"

	"github.com/ajitpratap0/exoseq/pkg/typedbytes"
)

func Example() {
	key := typedbytes.Pair(typedbytes.Int(3), typedbytes.Float(1.5))

	b, err := typedbytes.Encode(key)
	if err != nil {
		panic(err)
	}
	v, n, err := typedbytes.Decode(b)
	if err != nil {
		panic(err)
	}

	fmt.Printf("% x\n", b)
	fmt.Println(typedbytes.Format(v, 0), n)
	// Output:
	// 0b 04 00 00 00 00 00 00 00 03 06 3f f8 00 00 00 00 00 00
	// (3, 1.5) 19
}

func ExampleFloatArray() {
	b, _ := typedbytes.Encode(typedbytes.FloatArray{0.5, 2})
	v, _, _ := typedbytes.Decode(b)

	xs, ok := typedbytes.AsFloats(v)
	fmt.Println(v.Kind(), xs, ok)
	// Output:
	// seq [0.5 2] true
}
