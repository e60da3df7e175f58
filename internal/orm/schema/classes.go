package schema

import "strings"

// FieldClass is a field, relation or descriptor class of the ORM framework.
// Classes form a single-inheritance chain through Parent.
type FieldClass struct {
	Name     string
	Fullname string
	Parent   *FieldClass

	// auto marks the auto-incrementing primary key family
	auto    bool
	lookups map[string]*LookupClass
}

// Is reports whether c is other or a subclass of other.
func (c *FieldClass) Is(other *FieldClass) bool {
	for cls := c; cls != nil; cls = cls.Parent {
		if cls == other {
			return true
		}
	}
	return false
}

// IsAuto reports whether the class belongs to the auto-incrementing key family.
func (c *FieldClass) IsAuto() bool {
	for cls := c; cls != nil; cls = cls.Parent {
		if cls.auto {
			return true
		}
	}
	return false
}

// Lookup returns the comparison operator registered under name on the class
// or its nearest ancestor.
func (c *FieldClass) Lookup(name string) (*LookupClass, bool) {
	for cls := c; cls != nil; cls = cls.Parent {
		if lookup, ok := cls.lookups[name]; ok {
			return lookup, true
		}
	}
	return nil, false
}

// LookupNames returns every operator name available on the class.
func (c *FieldClass) LookupNames() []string {
	seen := make(map[string]bool)
	var names []string
	for cls := c; cls != nil; cls = cls.Parent {
		for name := range cls.lookups {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// LookupClass is a comparison operator class ("lookup") such as exact or icontains.
type LookupClass struct {
	LookupName string
	Fullname   string
	Parent     *LookupClass
}

// Is reports whether l is other or a subclass of other.
func (l *LookupClass) Is(other *LookupClass) bool {
	for cls := l; cls != nil; cls = cls.Parent {
		if cls == other {
			return true
		}
	}
	return false
}

const (
	fieldsModule      = "django.db.models.fields"
	relatedModule     = "django.db.models.fields.related"
	reverseModule     = "django.db.models.fields.reverse_related"
	lookupsModule     = "django.db.models.lookups"
	relLookupsModule  = "django.db.models.fields.related_lookups"
	postgresModule    = "django.contrib.postgres.fields.array"
	contenttypeModule = "django.contrib.contenttypes.fields"
	filesModule       = "django.db.models.fields.files"
	jsonModule        = "django.db.models.fields.json"
)

var classRegistry = make(map[string]*FieldClass)

func newClass(module, name string, parent *FieldClass) *FieldClass {
	cls := &FieldClass{
		Name:     name,
		Fullname: module + "." + name,
		Parent:   parent,
		lookups:  make(map[string]*LookupClass),
	}
	classRegistry[cls.Name] = cls
	classRegistry[cls.Fullname] = cls
	return cls
}

func newAutoClass(name string, parent *FieldClass) *FieldClass {
	cls := newClass(fieldsModule, name, parent)
	cls.auto = true
	return cls
}

// Field classes.
var (
	ClassField = newClass(fieldsModule, "Field", nil)

	ClassIntegerField              = newClass(fieldsModule, "IntegerField", ClassField)
	ClassBigIntegerField           = newClass(fieldsModule, "BigIntegerField", ClassIntegerField)
	ClassSmallIntegerField         = newClass(fieldsModule, "SmallIntegerField", ClassIntegerField)
	ClassPositiveIntegerField      = newClass(fieldsModule, "PositiveIntegerField", ClassIntegerField)
	ClassPositiveSmallIntegerField = newClass(fieldsModule, "PositiveSmallIntegerField", ClassSmallIntegerField)
	ClassPositiveBigIntegerField   = newClass(fieldsModule, "PositiveBigIntegerField", ClassBigIntegerField)
	ClassAutoField                 = newAutoClass("AutoField", ClassIntegerField)
	ClassBigAutoField              = newAutoClass("BigAutoField", ClassBigIntegerField)
	ClassSmallAutoField            = newAutoClass("SmallAutoField", ClassSmallIntegerField)

	ClassFloatField   = newClass(fieldsModule, "FloatField", ClassField)
	ClassDecimalField = newClass(fieldsModule, "DecimalField", ClassField)
	ClassBooleanField = newClass(fieldsModule, "BooleanField", ClassField)

	ClassCharField  = newClass(fieldsModule, "CharField", ClassField)
	ClassEmailField = newClass(fieldsModule, "EmailField", ClassCharField)
	ClassSlugField  = newClass(fieldsModule, "SlugField", ClassCharField)
	ClassURLField   = newClass(fieldsModule, "URLField", ClassCharField)
	ClassTextField  = newClass(fieldsModule, "TextField", ClassField)

	ClassDateField             = newClass(fieldsModule, "DateField", ClassField)
	ClassDateTimeField         = newClass(fieldsModule, "DateTimeField", ClassDateField)
	ClassTimeField             = newClass(fieldsModule, "TimeField", ClassField)
	ClassDurationField         = newClass(fieldsModule, "DurationField", ClassField)
	ClassUUIDField             = newClass(fieldsModule, "UUIDField", ClassField)
	ClassBinaryField           = newClass(fieldsModule, "BinaryField", ClassField)
	ClassGenericIPAddressField = newClass(fieldsModule, "GenericIPAddressField", ClassField)
	ClassJSONField             = newClass(jsonModule, "JSONField", ClassField)
	ClassFileField             = newClass(filesModule, "FileField", ClassField)
	ClassImageField            = newClass(filesModule, "ImageField", ClassFileField)

	ClassRelatedField    = newClass(relatedModule, "RelatedField", ClassField)
	ClassForeignObject   = newClass(relatedModule, "ForeignObject", ClassRelatedField)
	ClassForeignKey      = newClass(relatedModule, "ForeignKey", ClassForeignObject)
	ClassOneToOneField   = newClass(relatedModule, "OneToOneField", ClassForeignKey)
	ClassManyToManyField = newClass(relatedModule, "ManyToManyField", ClassRelatedField)

	ClassArrayField = newClass(postgresModule, "ArrayField", ClassField)

	ClassGenericForeignKey = newClass(contenttypeModule, "GenericForeignKey", nil)
)

// Reverse relation classes.
var (
	ClassForeignObjectRel = newClass(reverseModule, "ForeignObjectRel", nil)
	ClassManyToOneRel     = newClass(reverseModule, "ManyToOneRel", ClassForeignObjectRel)
	ClassOneToOneRel      = newClass(reverseModule, "OneToOneRel", ClassManyToOneRel)
	ClassManyToManyRel    = newClass(reverseModule, "ManyToManyRel", ClassForeignObjectRel)
)

func newLookup(module, class, name string, parent *LookupClass) *LookupClass {
	return &LookupClass{LookupName: name, Fullname: module + "." + class, Parent: parent}
}

// Lookup classes.
var (
	LookupBase          = newLookup(lookupsModule, "Lookup", "", nil)
	LookupBuiltin       = newLookup(lookupsModule, "BuiltinLookup", "", LookupBase)
	LookupExact         = newLookup(lookupsModule, "Exact", "exact", LookupBuiltin)
	LookupIExact        = newLookup(lookupsModule, "IExact", "iexact", LookupBuiltin)
	LookupGreaterThan   = newLookup(lookupsModule, "GreaterThan", "gt", LookupBuiltin)
	LookupGreaterEqual  = newLookup(lookupsModule, "GreaterThanOrEqual", "gte", LookupBuiltin)
	LookupLessThan      = newLookup(lookupsModule, "LessThan", "lt", LookupBuiltin)
	LookupLessEqual     = newLookup(lookupsModule, "LessThanOrEqual", "lte", LookupBuiltin)
	LookupIn            = newLookup(lookupsModule, "In", "in", LookupBuiltin)
	LookupPattern       = newLookup(lookupsModule, "PatternLookup", "", LookupBuiltin)
	LookupContains      = newLookup(lookupsModule, "Contains", "contains", LookupPattern)
	LookupIContains     = newLookup(lookupsModule, "IContains", "icontains", LookupContains)
	LookupStartsWith    = newLookup(lookupsModule, "StartsWith", "startswith", LookupPattern)
	LookupIStartsWith   = newLookup(lookupsModule, "IStartsWith", "istartswith", LookupStartsWith)
	LookupEndsWith      = newLookup(lookupsModule, "EndsWith", "endswith", LookupPattern)
	LookupIEndsWith     = newLookup(lookupsModule, "IEndsWith", "iendswith", LookupEndsWith)
	LookupRange         = newLookup(lookupsModule, "Range", "range", LookupBuiltin)
	LookupIsNull        = newLookup(lookupsModule, "IsNull", "isnull", LookupBuiltin)
	LookupRegex         = newLookup(lookupsModule, "Regex", "regex", LookupBuiltin)
	LookupIRegex        = newLookup(lookupsModule, "IRegex", "iregex", LookupRegex)
	LookupRelatedExact  = newLookup(relLookupsModule, "RelatedExact", "exact", LookupExact)
	LookupRelatedIn     = newLookup(relLookupsModule, "RelatedIn", "in", LookupIn)
	LookupRelatedLT     = newLookup(relLookupsModule, "RelatedLessThan", "lt", LookupLessThan)
	LookupRelatedGT     = newLookup(relLookupsModule, "RelatedGreaterThan", "gt", LookupGreaterThan)
	LookupRelatedGTE    = newLookup(relLookupsModule, "RelatedGreaterThanOrEqual", "gte", LookupGreaterEqual)
	LookupRelatedLTE    = newLookup(relLookupsModule, "RelatedLessThanOrEqual", "lte", LookupLessEqual)
	LookupRelatedIsNull = newLookup(relLookupsModule, "RelatedIsNull", "isnull", LookupIsNull)
)

func init() {
	for _, lookup := range []*LookupClass{
		LookupExact, LookupIExact, LookupGreaterThan, LookupGreaterEqual, LookupLessThan,
		LookupLessEqual, LookupIn, LookupContains, LookupIContains, LookupStartsWith,
		LookupIStartsWith, LookupEndsWith, LookupIEndsWith, LookupRange, LookupIsNull,
		LookupRegex, LookupIRegex,
	} {
		ClassField.lookups[lookup.LookupName] = lookup
	}
	for _, lookup := range []*LookupClass{
		LookupRelatedExact, LookupRelatedIn, LookupRelatedLT, LookupRelatedGT,
		LookupRelatedGTE, LookupRelatedLTE, LookupRelatedIsNull,
	} {
		ClassForeignObject.lookups[lookup.LookupName] = lookup
	}
}

// LookupClasses returns every registered comparison operator class.
func LookupClasses() []*LookupClass {
	return []*LookupClass{
		LookupBase, LookupBuiltin, LookupExact, LookupIExact, LookupGreaterThan,
		LookupGreaterEqual, LookupLessThan, LookupLessEqual, LookupIn, LookupPattern,
		LookupContains, LookupIContains, LookupStartsWith, LookupIStartsWith, LookupEndsWith,
		LookupIEndsWith, LookupRange, LookupIsNull, LookupRegex, LookupIRegex,
		LookupRelatedExact, LookupRelatedIn, LookupRelatedLT, LookupRelatedGT,
		LookupRelatedGTE, LookupRelatedLTE, LookupRelatedIsNull,
	}
}

// ClassByName finds a class by short or fully-qualified name.
func ClassByName(name string) (*FieldClass, bool) {
	cls, ok := classRegistry[name]
	if !ok && strings.HasPrefix(name, "models.") {
		cls, ok = classRegistry[strings.TrimPrefix(name, "models.")]
	}
	return cls, ok
}
