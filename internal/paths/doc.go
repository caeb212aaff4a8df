// Provides platform-appropriate default locations for build caches.
//
// The cache root follows XDG conventions on Linux and platform-native
// conventions on macOS and Windows, with the program name as the
// subdirectory. Each cache store lives in its own directory below the root
// and keeps its metadata record at [MetadataFile] inside that directory.
package paths
