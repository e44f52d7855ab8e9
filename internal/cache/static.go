package cache

// staticCache maps static asset URL paths to content hashes, filled
// once at startup and used for ETags.
var staticCache = NewCache[string, string]()

func GetStaticHash(path string) (string, bool) {
	return staticCache.Get(path)
}

func SetStaticHash(path, hash string) {
	staticCache.Set(path, hash)
}
