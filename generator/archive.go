package generator

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"tma-generator/models"
)

// ArchiveName is the download name for a zipped output directory, e.g.
// "MATH101-TMA04-LaTeX-Files.zip".
func ArchiveName(settings models.Settings) string {
	return fmt.Sprintf("%s-TMA%s-LaTeX-Files.zip", settings.Course, settings.TMARef)
}

// WriteArchive zips every regular file under dir into w, using paths relative to dir.
func WriteArchive(fs afero.Fs, dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	return zw.Close()
}
