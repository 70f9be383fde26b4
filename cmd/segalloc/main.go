// Command segalloc replays allocation traces against the segregated
// free-list allocator, checks heap consistency and inspects persisted heaps.
package main

func main() {
	execute()
}
