package ringmap

// IsOnPathOfAscension reports whether (x, y) lies on either diagonal through the origin.
func IsOnPathOfAscension(x, y int) bool {
	return x == y || x == -y
}
