package protocol

// cipherTable is the fixed initial permutation state for the frame
// transform. It is the same constant in every firmware image: the transform
// is the RC4 pseudo-random generation loop seeded directly from this table
// instead of a key schedule, so it hides bytes from casual capture but
// provides no confidentiality.
var cipherTable = [256]byte{
	191, 155, 227, 202, 99, 162, 79, 104, 49, 18, 190, 164, 30,
	76, 189, 131, 23, 52, 86, 106, 207, 125, 126, 169, 196, 28, 172, 58,
	188, 132, 160, 3, 36, 120, 144, 168, 12, 231, 116, 44, 41, 97, 108,
	213, 42, 198, 32, 148, 218, 107, 247, 112, 204, 14, 66, 68, 91, 224,
	206, 235, 33, 130, 203, 178, 1, 134, 199, 78, 249, 123, 7, 145, 73,
	208, 209, 100, 74, 115, 72, 118, 8, 22, 243, 147, 64, 96, 5, 87, 60,
	113, 233, 152, 31, 219, 143, 174, 232, 153, 245, 158, 254, 70, 170,
	75, 77, 215, 211, 59, 71, 133, 214, 157, 151, 6, 46, 81, 94, 136,
	166, 210, 4, 43, 241, 29, 223, 176, 67, 63, 186, 137, 129, 40, 248,
	255, 55, 15, 62, 183, 222, 105, 236, 197, 127, 54, 179, 194, 229,
	185, 37, 90, 237, 184, 25, 156, 173, 26, 187, 220, 2, 225, 0, 240,
	50, 251, 212, 253, 167, 17, 193, 205, 177, 21, 181, 246, 82, 226,
	38, 101, 163, 182, 242, 92, 20, 11, 95, 13, 230, 16, 121, 124, 109,
	195, 117, 39, 98, 239, 84, 56, 139, 161, 47, 201, 51, 135, 250, 10,
	19, 150, 45, 111, 27, 24, 142, 80, 85, 83, 234, 138, 216, 57, 93,
	65, 154, 141, 122, 34, 140, 128, 238, 88, 89, 9, 146, 171, 149, 53,
	102, 61, 114, 69, 217, 175, 103, 228, 35, 180, 252, 200, 192, 165,
	159, 221, 244, 110, 119, 48,
}

// Obfuscate applies the stream transform to data and returns the result as
// a new slice. Because the keystream depends only on the byte position, the
// same call both encodes and decodes a frame: Obfuscate(Obfuscate(b))
// restores b for any input. The exact byte sequence is required for
// interoperability with the device firmware.
func Obfuscate(data []byte) []byte {
	s := cipherTable // copied; the loop swaps state in place
	out := make([]byte, len(data))
	j := 0
	for k, b := range data {
		i := (k + 1) & 0xFF
		j = (j + int(s[i])) & 0xFF
		s[i], s[j] = s[j], s[i]
		out[k] = b ^ s[(int(s[i])+int(s[j]))&0xFF]
	}
	return out
}
