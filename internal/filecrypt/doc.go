// Package filecrypt streams files through AES-GCM in fixed-size chunks so
// that peak memory stays bounded regardless of file size.
//
// A file is sealed under one password-derived key and one random base IV.
// Chunk i uses the base IV with i XORed into its trailing counter bytes, and
// its additional data binds the algorithm tag, i and a final-chunk flag. The
// blob is the plain concatenation of sealed chunks: reassembly is positional,
// so reordering, dropping or truncating chunks fails authentication.
//
// Chunks may be sealed or opened concurrently, but are always written in
// input order. Progress is reported after each written chunk and reaches 1.0
// exactly once, on success. Failed or cancelled operations never yield a
// completed result: path helpers write through a temp file that is removed on
// error, and byte helpers return nil.
package filecrypt
