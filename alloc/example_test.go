package alloc_test

import (
	"fmt"

	"github.com/joshuapare/segalloc/alloc"
	"github.com/joshuapare/segalloc/region"
)

func Example() {
	r, err := region.NewMem(0)
	if err != nil {
		panic(err)
	}
	a, err := alloc.New(r, nil, nil)
	if err != nil {
		panic(err)
	}

	p, _ := a.Alloc(100)
	n := copy(a.Bytes(p), "hello, heap")
	fmt.Println(p, a.UsableSize(p), n)

	p, _ = a.Realloc(p, 5)
	fmt.Println(string(a.Bytes(p)[:5]))

	_ = a.Free(p)
	fmt.Println(a.Check() == nil, a.HeapSize())
	// Output:
	// 72 100 11
	// hello
	// true 584
}
