// Package pack stores vectors as compressed, framed containers and serves
// them back as lazily decompressed sources.
//
// A pack is a sequence of frames followed by a footer:
//
//	frame 0 | frame 1 | ... | frame N-1 | footer | trailer
//
// Every frame holds FrameElements elements (the last one may hold fewer),
// stored as an 8 byte header (raw size, stored size) followed by the
// zstd, lz4 or uncompressed payload. The footer records the element type,
// the shape, the codec, the frame offsets and a CRC32C per frame. The
// fixed-size trailer at the very end locates and checksums the footer.
//
// Write streams an object into a pack, materializing it frame by frame.
// Open returns a *Source whose Populate reads and decompresses only the
// frames covering the requested range, keeping recently used frames in a
// byte-bounded LRU cache:
//
//	var buf bytes.Buffer
//	if _, err := pack.Write(ctx, &buf, obj, pack.WriteOptions{Codec: pack.CodecZstd}); err != nil {
//		return err
//	}
//	src, err := pack.Open(ctx, blob, pack.WithCacheBytes(64<<20))
//	obj, err := inst.CreateObject(ctx, ufo.Config{Source: src})
package pack
