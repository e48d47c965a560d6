package topospec

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// Decode a Document from YAML |b|. Unknown fields are an error.
func Decode(b []byte) (*Document, error) {
	var d = new(Document)
	if err := yaml.UnmarshalStrict(b, d); err != nil {
		return nil, errors.WithMessage(err, "decoding topology document")
	}
	return d, nil
}

// Encode the Document as YAML.
func (d *Document) Encode() ([]byte, error) {
	var b, err = yaml.Marshal(d)
	return b, errors.WithMessage(err, "encoding topology document")
}

// Load and decode the Model of the Document at |path| of |fs|.
func Load(fs afero.Fs, path string) (*Model, error) {
	var b, err = afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s", path)
	}
	d, err := Decode(b)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	m, err := d.Model()
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	log.WithFields(log.Fields{
		"path":   path,
		"zones":  len(m.Topology.Zones),
		"shards": len(m.Topology.Shards),
	}).Debug("loaded topology document")

	return m, nil
}

// Store |m| as a Document at |path| of |fs|. The Document is written to a
// temporary file which is then renamed to |path|, so that a complete
// Document is always observed.
func Store(fs afero.Fs, path string, m *Model) error {
	var b, err = NewDocument(m).Encode()
	if err != nil {
		return err
	}
	var next = path + ".next"

	if err = afero.WriteFile(fs, next, b, 0644); err != nil {
		return errors.WithMessagef(err, "writing %s", next)
	} else if err = fs.Rename(next, path); err != nil {
		_ = fs.Remove(next)
		return errors.WithMessagef(err, "renaming %s => %s", next, path)
	}
	log.WithField("path", path).Debug("stored topology document")
	return nil
}

// Exists returns whether |path| exists within |fs|.
func Exists(fs afero.Fs, path string) (bool, error) {
	var _, err = fs.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
